// Package backup implements the versioned export document and the import
// merge engine.
//
// An export is a single JSON document (format version 2.0.0). Selected
// sections are either all plaintext under "contents", covered by a
// SHA-256 integrity hash, or all encrypted under "encryptedSections",
// each section sealed independently with AES-256-GCM under a key derived
// from the export password and a per-export salt. API keys only ever
// appear encrypted.
//
// Import verifies the hash, decrypts selected sections, and reconciles
// them against current state using per-resource merge strategies: chats
// append (colliding IDs are regenerated) or replace; quick links and
// widgets merge (union, existing wins, habit lists concatenated) or
// replace; scalar settings are overwritten when selected.
package backup
