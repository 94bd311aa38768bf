package secrets

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

var errLocked = errors.New("session locked")

// fixedKeySource hands out a copy of a fixed key, or an error when locked.
type fixedKeySource struct {
	key    []byte
	locked bool
}

func (f *fixedKeySource) ActiveKey() ([]byte, error) {
	if f.locked {
		return nil, errLocked
	}
	return append([]byte(nil), f.key...), nil
}

func newTestStore(t *testing.T) (*Store, *fixedKeySource, *storage.Storage) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	key, _ := crypto.GenerateRandom(crypto.KeySize)
	src := &fixedKeySource{key: key}
	return New(st, src, nil), src, st
}

func TestAPIKeysEmptyWhenNothingStored(t *testing.T) {
	s, _, _ := newTestStore(t)
	keys := s.APIKeys()
	if len(keys) != 0 {
		t.Errorf("Expected empty map, got %v", keys)
	}
}

func TestSaveAPIKeysMerges(t *testing.T) {
	s, _, _ := newTestStore(t)

	if err := s.SaveAPIKeys(map[string]string{ProviderOpenAI: "sk-one"}); err != nil {
		t.Fatalf("SaveAPIKeys failed: %v", err)
	}
	if err := s.SaveAPIKeys(map[string]string{ProviderAnthropic: "sk-two"}); err != nil {
		t.Fatalf("SaveAPIKeys failed: %v", err)
	}

	keys := s.APIKeys()
	if keys[ProviderOpenAI] != "sk-one" {
		t.Error("Partial save must preserve unspecified providers")
	}
	if keys[ProviderAnthropic] != "sk-two" {
		t.Error("New provider missing after save")
	}
}

func TestUpdateAndClearAPIKey(t *testing.T) {
	s, _, _ := newTestStore(t)

	if err := s.UpdateAPIKey(ProviderMistral, "sk-m"); err != nil {
		t.Fatalf("UpdateAPIKey failed: %v", err)
	}
	if got := s.APIKeys()[ProviderMistral]; got != "sk-m" {
		t.Errorf("Expected sk-m, got %q", got)
	}

	if err := s.UpdateAPIKey(ProviderMistral, ""); err == nil {
		t.Error("Empty value should be rejected by UpdateAPIKey")
	}

	if err := s.ClearAPIKey(ProviderMistral); err != nil {
		t.Fatalf("ClearAPIKey failed: %v", err)
	}
	if _, ok := s.APIKeys()[ProviderMistral]; ok {
		t.Error("Cleared provider still present")
	}
}

func TestLockedSession(t *testing.T) {
	s, src, _ := newTestStore(t)
	if err := s.SaveAPIKeys(map[string]string{ProviderOpenAI: "sk-one"}); err != nil {
		t.Fatalf("SaveAPIKeys failed: %v", err)
	}

	src.locked = true

	if keys := s.APIKeys(); len(keys) != 0 {
		t.Error("Locked session must read as no keys, not crash")
	}
	if err := s.SaveAPIKeys(map[string]string{ProviderOpenAI: "sk-new"}); !errors.Is(err, errLocked) {
		t.Errorf("Expected the key source error, got %v", err)
	}
}

func TestWrongKeyDegradesToEmpty(t *testing.T) {
	s, src, _ := newTestStore(t)
	if err := s.SaveAPIKeys(map[string]string{ProviderOpenAI: "sk-one"}); err != nil {
		t.Fatalf("SaveAPIKeys failed: %v", err)
	}

	other, _ := crypto.GenerateRandom(crypto.KeySize)
	src.key = other

	if keys := s.APIKeys(); len(keys) != 0 {
		t.Error("Undecryptable blob must read as no keys")
	}
}

func TestProviders(t *testing.T) {
	s, _, _ := newTestStore(t)
	_ = s.SaveAPIKeys(map[string]string{ProviderOpenAI: "a", ProviderAnthropic: "b"})

	got := s.Providers()
	want := []string{ProviderAnthropic, ProviderOpenAI}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Providers = %v, want %v", got, want)
	}
}

func TestReencryptBlob(t *testing.T) {
	s, src, st := newTestStore(t)
	if err := s.SaveAPIKeys(map[string]string{ProviderOpenAI: "sk-one"}); err != nil {
		t.Fatalf("SaveAPIKeys failed: %v", err)
	}

	newKey, _ := crypto.GenerateRandom(crypto.KeySize)
	if err := ReencryptBlob(st, src.key, newKey); err != nil {
		t.Fatalf("ReencryptBlob failed: %v", err)
	}

	src.key = newKey
	if got := s.APIKeys()[ProviderOpenAI]; got != "sk-one" {
		t.Errorf("Expected sk-one under new key, got %q", got)
	}
}

func TestReencryptBlobNoOldKey(t *testing.T) {
	_, _, st := newTestStore(t)

	newKey, _ := crypto.GenerateRandom(crypto.KeySize)
	if err := ReencryptBlob(st, nil, newKey); err != nil {
		t.Fatalf("ReencryptBlob with no old key failed: %v", err)
	}

	// An empty mapping sealed under the new key should exist now
	if _, err := st.SecretBlob(); err != nil {
		t.Errorf("Expected a blob after re-encrypt, got %v", err)
	}
}
