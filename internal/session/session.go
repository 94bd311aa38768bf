package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/secrets"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

const (
	MinPasswordLength = 6
	StrongLength      = 8

	// DefaultTimeoutMinutes is the idle timeout applied to new configs.
	DefaultTimeoutMinutes = 30

	canaryPlaintext = "horizen-password-check"
)

var (
	ErrWeakPassword      = errors.New("password too weak")
	ErrSessionLocked     = errors.New("session locked")
	ErrAlreadyConfigured = errors.New("password protection already enabled")
	ErrNotConfigured     = errors.New("password protection not enabled")
)

// State describes the protection/session state machine.
type State int

const (
	StateNoConfig State = iota // protection never configured
	StateDisabled              // user opted out, legacy key regime
	StateLocked                // protection on, no key in memory
	StateUnlocked              // protection on, derived key held
)

func (s State) String() string {
	switch s {
	case StateNoConfig:
		return "not configured"
	case StateDisabled:
		return "disabled"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// LegacyKeyStore holds the non-password key used before protection is
// enabled and after it is disabled. The production implementation is the
// OS keyring.
type LegacyKeyStore interface {
	Save(key []byte) error
	Load() ([]byte, error)
	Delete() error
	Has() bool
}

// Manager derives session keys from passwords and enforces idle expiry.
// It is constructor-injected rather than a package singleton so tests can
// run independent sessions side by side.
type Manager struct {
	store  *storage.Storage
	legacy LegacyKeyStore
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	unlocked   bool
	unlockedAt time.Time
	key        []byte
}

// NewManager creates a session manager over the given profile storage.
func NewManager(store *storage.Storage, legacy LegacyKeyStore, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:  store,
		legacy: legacy,
		log:    log,
		now:    time.Now,
	}
}

// State reports the current position in the protection state machine.
func (m *Manager) State() State {
	cfg, err := m.store.SecurityConfig()
	if errors.Is(err, storage.ErrNotFound) {
		return StateNoConfig
	}
	if err != nil {
		m.log.Warn("failed to read security config", zap.Error(err))
		return StateNoConfig
	}
	if !cfg.Enabled {
		return StateDisabled
	}
	if m.IsSessionUnlocked() {
		return StateUnlocked
	}
	return StateLocked
}

// SetupPassword enables password protection. It derives a key from the
// password with a fresh salt, re-encrypts any credentials held under the
// legacy key, discards the legacy key, and leaves the session unlocked.
// The password itself is never persisted, only salt and iteration count.
func (m *Manager) SetupPassword(password []byte) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	cfg, err := m.store.SecurityConfig()
	if err == nil && cfg.Enabled {
		return ErrAlreadyConfigured
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read security config: %w", err)
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return err
	}
	newKey := kdf.DeriveKey(password)

	// Pick up credentials encrypted under the legacy regime, if any.
	var oldKey []byte
	if m.legacy.Has() {
		oldKey, err = m.legacy.Load()
		if err != nil {
			return fmt.Errorf("failed to load legacy key: %w", err)
		}
	}
	if err := secrets.ReencryptBlob(m.store, oldKey, newKey); err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to re-encrypt credentials: %w", err)
	}
	if oldKey != nil {
		crypto.ClearBytes(oldKey)
		if err := m.legacy.Delete(); err != nil {
			m.log.Warn("failed to remove legacy key from keyring", zap.Error(err))
		}
	}

	timeout := DefaultTimeoutMinutes
	if cfg != nil && cfg.SessionTimeoutMinutes > 0 {
		timeout = cfg.SessionTimeoutMinutes
	}
	if err := m.store.SetSecurityConfig(&storage.SecurityConfig{
		Enabled:               true,
		Salt:                  kdf.Salt,
		Iterations:            kdf.Iterations,
		SessionTimeoutMinutes: timeout,
	}); err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to persist security config: %w", err)
	}

	if err := m.writeCanary(newKey); err != nil {
		crypto.ClearBytes(newKey)
		return err
	}

	m.setUnlocked(newKey)
	m.log.Info("password protection enabled")
	return nil
}

// UnlockWithPassword re-derives the key from the stored salt and checks it
// against the encrypted canary before holding it. Returns false for a
// wrong password or when protection is disabled; the error is reserved for
// storage and internal failures.
func (m *Manager) UnlockWithPassword(password []byte) (bool, error) {
	cfg, err := m.store.SecurityConfig()
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read security config: %w", err)
	}
	if !cfg.Enabled {
		return false, nil
	}

	kdf := &crypto.KDF{Salt: cfg.Salt, Iterations: cfg.Iterations}
	key := kdf.DeriveKey(password)

	canary, err := m.store.Canary()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// Profiles created before the canary record existed have nothing
		// to check against; the key is accepted and verified on first use.
	case err != nil:
		crypto.ClearBytes(key)
		return false, fmt.Errorf("failed to read canary: %w", err)
	default:
		enc := crypto.NewEncryptor(key)
		if _, err := enc.Open(canary.Ciphertext, canary.IV); err != nil {
			crypto.ClearBytes(key)
			if errors.Is(err, crypto.ErrAuthFailed) {
				m.log.Info("unlock rejected")
				return false, nil
			}
			return false, err
		}
	}

	m.setUnlocked(key)
	return true, nil
}

// LockSession zeroes the derived key and marks the session locked.
// Idempotent.
func (m *Manager) LockSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked()
}

// IsSessionUnlocked reports whether a key is available. With protection
// disabled there is no gate and it always returns true. The idle timeout
// is checked lazily here; an expired session is locked as a side effect.
func (m *Manager) IsSessionUnlocked() bool {
	cfg, err := m.store.SecurityConfig()
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		m.log.Warn("failed to read security config", zap.Error(err))
		return false
	}
	if !cfg.Enabled {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return false
	}

	timeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	if timeout > 0 && m.now().Sub(m.unlockedAt) > timeout {
		m.lockLocked()
		m.log.Info("session expired")
		return false
	}
	return true
}

// RefreshSession bumps the idle timer. The host calls this on user
// activity; it is a no-op while locked.
func (m *Manager) RefreshSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unlocked {
		m.unlockedAt = m.now()
	}
}

// ChangePassword re-encrypts the credential blob under a key derived from
// newPassword with a fresh salt. Returns false when oldPassword fails to
// authenticate.
func (m *Manager) ChangePassword(oldPassword, newPassword []byte) (bool, error) {
	if len(newPassword) < MinPasswordLength {
		return false, ErrWeakPassword
	}

	cfg, err := m.store.SecurityConfig()
	if errors.Is(err, storage.ErrNotFound) {
		return false, ErrNotConfigured
	}
	if err != nil {
		return false, fmt.Errorf("failed to read security config: %w", err)
	}
	if !cfg.Enabled {
		return false, ErrNotConfigured
	}

	oldKDF := &crypto.KDF{Salt: cfg.Salt, Iterations: cfg.Iterations}
	oldKey := oldKDF.DeriveKey(oldPassword)
	defer crypto.ClearBytes(oldKey)

	if ok, err := m.checkKey(oldKey); err != nil {
		return false, err
	} else if !ok {
		return false, nil
	}

	newKDF, err := crypto.NewKDF()
	if err != nil {
		return false, err
	}
	newKey := newKDF.DeriveKey(newPassword)

	if err := secrets.ReencryptBlob(m.store, oldKey, newKey); err != nil {
		crypto.ClearBytes(newKey)
		return false, fmt.Errorf("failed to re-encrypt credentials: %w", err)
	}
	if err := m.store.SetSecurityConfig(&storage.SecurityConfig{
		Enabled:               true,
		Salt:                  newKDF.Salt,
		Iterations:            newKDF.Iterations,
		SessionTimeoutMinutes: cfg.SessionTimeoutMinutes,
	}); err != nil {
		crypto.ClearBytes(newKey)
		return false, fmt.Errorf("failed to persist security config: %w", err)
	}
	if err := m.writeCanary(newKey); err != nil {
		crypto.ClearBytes(newKey)
		return false, err
	}

	m.setUnlocked(newKey)
	m.log.Info("password changed")
	return true, nil
}

// DisablePasswordProtection moves credentials from the password-derived
// key back to a random key held in the OS keyring and records the opt-out.
// Requires an unlocked session while protection is enabled. The caller is
// responsible for confirming this with the user first.
func (m *Manager) DisablePasswordProtection() error {
	cfg, err := m.store.SecurityConfig()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read security config: %w", err)
	}

	if err != nil || !cfg.Enabled {
		// Opting out without protection on: keep whatever keyring key is
		// already in use, just record the decision.
		if !m.legacy.Has() {
			key, err := crypto.GenerateRandom(crypto.KeySize)
			if err != nil {
				return err
			}
			if err := m.legacy.Save(key); err != nil {
				return fmt.Errorf("failed to store opt-out key: %w", err)
			}
		}
	} else {
		if !m.IsSessionUnlocked() {
			return ErrSessionLocked
		}
		m.mu.Lock()
		oldKey := append([]byte(nil), m.key...)
		m.mu.Unlock()

		legacyKey, err := crypto.GenerateRandom(crypto.KeySize)
		if err != nil {
			return err
		}
		if err := secrets.ReencryptBlob(m.store, oldKey, legacyKey); err != nil {
			return fmt.Errorf("failed to re-encrypt credentials: %w", err)
		}
		if err := m.legacy.Save(legacyKey); err != nil {
			return fmt.Errorf("failed to store opt-out key: %w", err)
		}
		crypto.ClearBytes(oldKey)
	}

	timeout := DefaultTimeoutMinutes
	if cfg != nil && cfg.SessionTimeoutMinutes > 0 {
		timeout = cfg.SessionTimeoutMinutes
	}
	if err := m.store.SetSecurityConfig(&storage.SecurityConfig{
		Enabled:               false,
		SessionTimeoutMinutes: timeout,
	}); err != nil {
		return fmt.Errorf("failed to persist security config: %w", err)
	}

	m.LockSession()
	m.log.Info("password protection disabled")
	return nil
}

// ForgetPassword is the destructive forgot-password path: the encrypted
// credential blob, canary, and security config are deleted outright. The
// caller must obtain explicit confirmation before calling.
func (m *Manager) ForgetPassword() error {
	if err := m.store.DeleteSecretBlob(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if err := m.store.DeleteSecurityRecords(); err != nil {
		return fmt.Errorf("failed to delete security config: %w", err)
	}
	m.LockSession()
	m.log.Info("password protection reset, credentials deleted")
	return nil
}

// SetSessionTimeout persists a new idle timeout in minutes.
func (m *Manager) SetSessionTimeout(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", minutes)
	}
	cfg, err := m.store.SecurityConfig()
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotConfigured
	}
	if err != nil {
		return fmt.Errorf("failed to read security config: %w", err)
	}
	cfg.SessionTimeoutMinutes = minutes
	return m.store.SetSecurityConfig(cfg)
}

// ActiveKey returns the key the secret store should encrypt under:
// the derived key when protection is on, the keyring key otherwise.
// With protection on and the session locked it returns ErrSessionLocked.
// A missing keyring key is generated on first use.
func (m *Manager) ActiveKey() ([]byte, error) {
	cfg, err := m.store.SecurityConfig()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read security config: %w", err)
	}
	if err == nil && cfg.Enabled {
		if !m.IsSessionUnlocked() {
			return nil, ErrSessionLocked
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return append([]byte(nil), m.key...), nil
	}

	if m.legacy.Has() {
		return m.legacy.Load()
	}
	key, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		return nil, err
	}
	if err := m.legacy.Save(key); err != nil {
		return nil, fmt.Errorf("failed to store opt-out key: %w", err)
	}
	return key, nil
}

func (m *Manager) setUnlocked(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		crypto.ClearBytes(m.key)
	}
	m.key = key
	m.unlocked = true
	m.unlockedAt = m.now()
}

// lockLocked zeroes the key. Caller holds m.mu.
func (m *Manager) lockLocked() {
	if m.key != nil {
		crypto.ClearBytes(m.key)
		m.key = nil
	}
	m.unlocked = false
}

func (m *Manager) writeCanary(key []byte) error {
	enc := crypto.NewEncryptor(key)
	ct, iv, err := enc.Seal([]byte(canaryPlaintext))
	if err != nil {
		return fmt.Errorf("failed to encrypt canary: %w", err)
	}
	return m.store.SetCanary(&storage.EncryptedRecord{Ciphertext: ct, IV: iv})
}

// checkKey authenticates a candidate key against the stored canary.
func (m *Manager) checkKey(key []byte) (bool, error) {
	canary, err := m.store.Canary()
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read canary: %w", err)
	}
	enc := crypto.NewEncryptor(key)
	if _, err := enc.Open(canary.Ciphertext, canary.IV); err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
