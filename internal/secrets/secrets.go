// Package secrets stores provider API keys as a single encrypted blob,
// sealed under whatever key the session currently holds.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

// Known provider names. The blob is keyed by provider, so unknown names
// round-trip fine; these exist for the CLI and validation messages.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
)

// KeySource supplies the symmetric key credentials are sealed under. The
// session manager implements it; locked sessions yield an error.
type KeySource interface {
	ActiveKey() ([]byte, error)
}

// Store encrypts and decrypts the provider-credential blob.
type Store struct {
	storage *storage.Storage
	keys    KeySource
	log     *zap.Logger
}

// New creates a secret store over the given profile storage.
func New(st *storage.Storage, keys KeySource, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{storage: st, keys: keys, log: log}
}

// APIKeys returns the provider-to-key mapping. A missing blob, a locked
// session, or a blob the current key cannot authenticate all degrade to an
// empty map so routine reads never crash the caller.
func (s *Store) APIKeys() map[string]string {
	key, err := s.keys.ActiveKey()
	if err != nil {
		return map[string]string{}
	}
	defer crypto.ClearBytes(key)

	keys, err := decryptBlob(s.storage, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("credential blob unreadable, treating as empty", zap.Error(err))
		}
		return map[string]string{}
	}
	return keys
}

// SaveAPIKeys merges partial into the stored mapping, preserving providers
// it does not mention, and re-encrypts the whole mapping. An empty string
// value removes that provider.
func (s *Store) SaveAPIKeys(partial map[string]string) error {
	key, err := s.keys.ActiveKey()
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(key)

	current, err := decryptBlob(s.storage, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			current = map[string]string{}
		} else if errors.Is(err, crypto.ErrAuthFailed) {
			return err
		} else {
			return fmt.Errorf("failed to decrypt credentials: %w", err)
		}
	}

	for provider, value := range partial {
		if value == "" {
			delete(current, provider)
			continue
		}
		current[provider] = value
	}

	return encryptBlob(s.storage, key, current)
}

// UpdateAPIKey sets a single provider credential.
func (s *Store) UpdateAPIKey(provider, value string) error {
	if value == "" {
		return fmt.Errorf("empty API key for provider %q", provider)
	}
	return s.SaveAPIKeys(map[string]string{provider: value})
}

// ClearAPIKey removes a single provider credential.
func (s *Store) ClearAPIKey(provider string) error {
	return s.SaveAPIKeys(map[string]string{provider: ""})
}

// Providers lists provider names present in the blob, sorted.
func (s *Store) Providers() []string {
	keys := s.APIKeys()
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReencryptBlob decrypts the credential blob under oldKey and re-encrypts
// it under newKey. A nil oldKey, or no blob at all, is treated as an empty
// mapping. Used during password setup, password change, and opt-out.
func ReencryptBlob(st *storage.Storage, oldKey, newKey []byte) error {
	current := map[string]string{}
	if oldKey != nil {
		decrypted, err := decryptBlob(st, oldKey)
		switch {
		case err == nil:
			current = decrypted
		case errors.Is(err, storage.ErrNotFound):
			// nothing stored yet
		default:
			return err
		}
	}
	return encryptBlob(st, newKey, current)
}

func decryptBlob(st *storage.Storage, key []byte) (map[string]string, error) {
	rec, err := st.SecretBlob()
	if err != nil {
		return nil, err
	}
	enc := crypto.NewEncryptor(key)
	plaintext, err := enc.Open(rec.Ciphertext, rec.IV)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(plaintext)

	keys := map[string]string{}
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return keys, nil
}

func encryptBlob(st *storage.Storage, key []byte, keys map[string]string) error {
	plaintext, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	defer crypto.ClearBytes(plaintext)

	enc := crypto.NewEncryptor(key)
	ct, iv, err := enc.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return st.SetSecretBlob(&storage.EncryptedRecord{Ciphertext: ct, IV: iv})
}
