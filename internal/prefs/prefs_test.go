package prefs

import (
	"path/filepath"
	"testing"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return NewBoltStore(st)
}

func TestPrefsEmptyProfile(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Prefs()
	if err != nil {
		t.Fatalf("Prefs failed: %v", err)
	}
	if len(p.Conversations) != 0 || len(p.Widgets) != 0 {
		t.Errorf("Fresh profile should yield the zero document, got %+v", p)
	}
}

func TestSetPrefsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	err := s.SetPrefs(func(p Prefs) Prefs {
		p.Settings.SearchEngine = "duckduckgo"
		p.Conversations = append(p.Conversations, Conversation{ID: "c-1", Title: "First"})
		return p
	})
	if err != nil {
		t.Fatalf("SetPrefs failed: %v", err)
	}

	got, err := s.Prefs()
	if err != nil {
		t.Fatalf("Prefs failed: %v", err)
	}
	if got.Settings.SearchEngine != "duckduckgo" {
		t.Errorf("SearchEngine = %q, want duckduckgo", got.Settings.SearchEngine)
	}
	if len(got.Conversations) != 1 || got.Conversations[0].ID != "c-1" {
		t.Errorf("Conversations did not round-trip: %+v", got.Conversations)
	}
}

func TestSetPrefsComposes(t *testing.T) {
	s := newTestStore(t)

	_ = s.SetPrefs(func(p Prefs) Prefs {
		p.Widgets = []Widget{{ID: "w-1", Type: "weather", Enabled: true}}
		return p
	})
	_ = s.SetPrefs(func(p Prefs) Prefs {
		p.Widgets = append(p.Widgets, Widget{ID: "w-2", Type: "habits", Enabled: true})
		return p
	})

	got, err := s.Prefs()
	if err != nil {
		t.Fatalf("Prefs failed: %v", err)
	}
	if len(got.Widgets) != 2 {
		t.Errorf("Expected 2 widgets after two updates, got %d", len(got.Widgets))
	}
}
