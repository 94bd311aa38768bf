// Package prefs holds the preference document the start page renders:
// chat conversations, widgets, quick links, and scalar settings. The
// secrets and backup cores read and write it through Store.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

// Message is a single chat message.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one chat transcript. Ephemeral ("ghost") conversations
// never leave the device and are excluded from exports.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Ephemeral bool      `json:"ephemeral,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuickLink is one entry in the start page link grid.
type QuickLink struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Widget is one start-page widget. Config carries the widget-specific
// settings opaque to this core; Habits is the one collection with its own
// merge semantics (union rather than overwrite).
type Widget struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"` // "weather", "ticker", "habits", "pomodoro"
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
	Habits  []string        `json:"habits,omitempty"`
}

// ChatPrefs are the assistant defaults.
type ChatPrefs struct {
	DefaultProvider string `json:"defaultProvider"`
	DefaultModel    string `json:"defaultModel"`
	StreamResponses bool   `json:"streamResponses"`
}

// Settings are the scalar preferences plus the quick-link list.
type Settings struct {
	SearchEngine  string      `json:"searchEngine"`
	ShowShortcuts bool        `json:"showShortcuts"`
	ChatPrefs     ChatPrefs   `json:"chatPrefs"`
	QuickLinks    []QuickLink `json:"quickLinks"`
}

// Prefs is the whole preference document.
type Prefs struct {
	Conversations []Conversation `json:"conversations"`
	Widgets       []Widget       `json:"widgets"`
	Settings      Settings       `json:"settings"`
}

// Store reads and writes the preference document. SetPrefs applies an
// updater so callers compose read-modify-write without racing each other
// inside one process.
type Store interface {
	Prefs() (Prefs, error)
	SetPrefs(update func(Prefs) Prefs) error
}

// BoltStore persists preferences in the profile database.
type BoltStore struct {
	storage *storage.Storage
}

// NewBoltStore creates a preference store over the given profile storage.
func NewBoltStore(st *storage.Storage) *BoltStore {
	return &BoltStore{storage: st}
}

// Prefs loads the preference document. A profile without one yields the
// zero document, not an error.
func (s *BoltStore) Prefs() (Prefs, error) {
	data, err := s.storage.Prefs()
	if errors.Is(err, storage.ErrNotFound) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, err
	}
	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}

// SetPrefs applies update to the current document and persists the result.
func (s *BoltStore) SetPrefs(update func(Prefs) Prefs) error {
	current, err := s.Prefs()
	if err != nil {
		return err
	}
	next := update(current)
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return s.storage.SetPrefs(data)
}
