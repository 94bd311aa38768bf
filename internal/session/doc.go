// Package session turns a user password into a session-scoped symmetric
// key and enforces automatic idle expiry.
//
// The protection state machine has four states:
//   - not configured: no security config exists yet
//   - disabled: the user opted out; a random key in the OS keyring is used
//   - locked: protection on, no key in memory
//   - unlocked: protection on, derived key held until lock or timeout
//
// Unlock authenticates the derived key against an encrypted canary record
// before the session holds it, so a wrong password is rejected at unlock
// time rather than on first decryption. The derived key lives only in
// memory and is zeroed on lock; it is never persisted or logged.
//
// The timeout is evaluated lazily on each IsSessionUnlocked call. The host
// is expected to call RefreshSession on user activity to get an idle
// timeout rather than a fixed-duration session.
package session
