package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // Security config, canary, timestamps - unencrypted metadata
	SecretsBucket = []byte("secrets") // Encrypted provider-credential blob
	PrefsBucket   = []byte("prefs")   // Preference document (conversations, widgets, settings)
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigSecurity = []byte("security")
	ConfigCanary   = []byte("canary")
)

// Record keys
var (
	SecretsAPIKeys = []byte("apiKeys")
	PrefsDocument  = []byte("document")
)

var ErrNotFound = errors.New("record not found")

// SecurityConfig is the persisted password-protection configuration.
// It exists once the user has either set a password or explicitly opted
// out; absence means protection was never configured.
type SecurityConfig struct {
	Enabled               bool   `json:"enabled"`
	Salt                  []byte `json:"salt"`
	Iterations            int    `json:"iterations"`
	SessionTimeoutMinutes int    `json:"sessionTimeoutMinutes"`
}

// EncryptedRecord is an authenticated-encryption envelope with its IV
// stored as a separate field. Used for the secret blob and the canary.
type EncryptedRecord struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
}

// Storage provides BBolt-based storage for the horizen profile
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a profile database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure for a new profile
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, SecretsBucket, PrefsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// SecurityConfig retrieves the persisted security configuration.
// Returns ErrNotFound when protection was never configured.
func (s *Storage) SecurityConfig() (*SecurityConfig, error) {
	var cfg *SecurityConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotFound
		}
		data := config.Get(ConfigSecurity)
		if data == nil {
			return ErrNotFound
		}
		cfg = &SecurityConfig{}
		return json.Unmarshal(data, cfg)
	})
	return cfg, err
}

// SetSecurityConfig persists the security configuration
func (s *Storage) SetSecurityConfig(cfg *SecurityConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal security config: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigSecurity, data)
	})
}

// Canary retrieves the encrypted password-check record
func (s *Storage) Canary() (*EncryptedRecord, error) {
	return s.record(ConfigBucket, ConfigCanary)
}

// SetCanary stores the encrypted password-check record
func (s *Storage) SetCanary(rec *EncryptedRecord) error {
	return s.setRecord(ConfigBucket, ConfigCanary, rec)
}

// SecretBlob retrieves the encrypted provider-credential blob.
// Returns ErrNotFound when no credentials were ever stored.
func (s *Storage) SecretBlob() (*EncryptedRecord, error) {
	return s.record(SecretsBucket, SecretsAPIKeys)
}

// SetSecretBlob stores the encrypted provider-credential blob
func (s *Storage) SetSecretBlob(rec *EncryptedRecord) error {
	return s.setRecord(SecretsBucket, SecretsAPIKeys, rec)
}

// DeleteSecretBlob removes the credential blob. Used by the destructive
// forgot-password path.
func (s *Storage) DeleteSecretBlob() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		secrets := tx.Bucket(SecretsBucket)
		if secrets == nil {
			return nil
		}
		return secrets.Delete(SecretsAPIKeys)
	})
}

// DeleteSecurityRecords removes the security config and canary, returning
// the profile to the never-configured state.
func (s *Storage) DeleteSecurityRecords() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return nil
		}
		if err := config.Delete(ConfigSecurity); err != nil {
			return err
		}
		return config.Delete(ConfigCanary)
	})
}

// Prefs retrieves the raw preference document.
// Returns ErrNotFound when no preferences were ever saved.
func (s *Storage) Prefs() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		prefs := tx.Bucket(PrefsBucket)
		if prefs == nil {
			return ErrNotFound
		}
		v := prefs.Get(PrefsDocument)
		if v == nil {
			return ErrNotFound
		}
		// Copy out of the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// SetPrefs stores the raw preference document
func (s *Storage) SetPrefs(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		prefs := tx.Bucket(PrefsBucket)
		if err := prefs.Put(PrefsDocument, data); err != nil {
			return err
		}
		return s.touchModified(tx)
	})
}

// UpdateModified updates the last modified timestamp
func (s *Storage) UpdateModified() error {
	return s.db.Update(s.touchModified)
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

func (s *Storage) touchModified(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	now, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, now)
}

func (s *Storage) record(bucket, key []byte) (*EncryptedRecord, error) {
	var rec *EncryptedRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(key)
		if data == nil {
			return ErrNotFound
		}
		rec = &EncryptedRecord{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

func (s *Storage) setRecord(bucket, key []byte, rec *EncryptedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put(key, data)
	})
}
