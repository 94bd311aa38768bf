// Package storage provides the BBolt database interface for the horizen
// profile.
//
// Database structure uses three buckets:
//   - config: security configuration (salt, iterations, timeout), the
//     encrypted password canary, timestamps
//   - secrets: the encrypted provider-credential blob
//   - prefs: the preference document (conversations, widgets, settings)
//
// The unencrypted config bucket lets the status command report protection
// state without requiring a password.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
