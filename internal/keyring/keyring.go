// Package keyring stores the non-password ("opted out") key in the OS
// keyring so it never sits next to the ciphertext it protects.
package keyring

import (
	"encoding/base64"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "horizen"
	legacyKeyID = "legacy-key"
)

// SaveLegacyKey stores the legacy/opt-out key in the OS keyring
func SaveLegacyKey(key []byte) error {
	return keyring.Set(serviceName, legacyKeyID, base64.StdEncoding.EncodeToString(key))
}

// LegacyKey retrieves the legacy/opt-out key from the OS keyring
func LegacyKey() ([]byte, error) {
	encoded, err := keyring.Get(serviceName, legacyKeyID)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// DeleteLegacyKey removes the legacy/opt-out key from the OS keyring
func DeleteLegacyKey() error {
	return keyring.Delete(serviceName, legacyKeyID)
}

// HasLegacyKey checks if a legacy/opt-out key is present
func HasLegacyKey() bool {
	_, err := keyring.Get(serviceName, legacyKeyID)
	return err == nil
}

// Store adapts the package functions to the session manager's
// LegacyKeyStore interface.
type Store struct{}

func (Store) Save(key []byte) error { return SaveLegacyKey(key) }
func (Store) Load() ([]byte, error) { return LegacyKey() }
func (Store) Delete() error         { return DeleteLegacyKey() }
func (Store) Has() bool             { return HasLegacyKey() }
