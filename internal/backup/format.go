package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

// FormatVersion identifies this generation of the export document.
const FormatVersion = "2.0.0"

// Section names.
const (
	SectionSettings = "settings"
	SectionChats    = "chats"
	SectionWidgets  = "widgets"
	SectionAPIKeys  = "apiKeys"
)

// Settings sub-item names used in selection trees.
const (
	SettingSearchEngine = "searchEngine"
	SettingShortcuts    = "shortcuts"
	SettingChatPrefs    = "chatPrefs"
	SettingQuickLinks   = "quickLinks"
)

// EncryptedSection is one independently encrypted section. Each carries
// its own IV; IVs are never reused across sections or exports.
type EncryptedSection struct {
	Data []byte `json:"data"`
	IV   []byte `json:"iv"`
}

// Contents holds the plaintext sections of an export.
type Contents struct {
	Settings *prefs.Settings      `json:"settings,omitempty"`
	Chats    []prefs.Conversation `json:"chats,omitempty"`
	Widgets  []prefs.Widget       `json:"widgets,omitempty"`
}

// EncryptedSections holds the encrypted sections of an export. API keys
// may only ever appear here; there is deliberately no plaintext slot for
// them.
type EncryptedSections struct {
	APIKeys  *EncryptedSection `json:"apiKeys,omitempty"`
	Chats    *EncryptedSection `json:"chats,omitempty"`
	Settings *EncryptedSection `json:"settings,omitempty"`
	Widgets  *EncryptedSection `json:"widgets,omitempty"`
}

// ExportDataV2 is the versioned backup document. A logical section
// appears in exactly one of Contents or EncryptedSections. Salt is
// present iff the document is encrypted and is generated per export,
// distinct from the session's own salt.
type ExportDataV2 struct {
	Version           string             `json:"version"`
	AppVersion        string             `json:"appVersion,omitempty"`
	ExportedAt        time.Time          `json:"exportedAt"`
	Encrypted         bool               `json:"encrypted"`
	Salt              []byte             `json:"salt,omitempty"`
	Contents          *Contents          `json:"contents,omitempty"`
	EncryptedSections *EncryptedSections `json:"encryptedSections,omitempty"`
	Hash              string             `json:"hash,omitempty"`
}

// SectionSelection marks a section and optionally a subset of its items.
// An empty Items map means every item.
type SectionSelection struct {
	Selected bool            `json:"selected"`
	Items    map[string]bool `json:"items,omitempty"`
}

// Includes reports whether the item id is part of the selection.
func (s SectionSelection) Includes(id string) bool {
	if !s.Selected {
		return false
	}
	if len(s.Items) == 0 {
		return true
	}
	return s.Items[id]
}

// SelectionTree describes which sections and items take part in an export
// or import. Transient negotiation state, never persisted.
type SelectionTree map[string]SectionSelection

// Section returns the selection for a named section, zero if absent.
func (t SelectionTree) Section(name string) SectionSelection {
	return t[name]
}

// SelectAll builds a selection tree covering every section.
func SelectAll(includeAPIKeys bool) SelectionTree {
	tree := SelectionTree{
		SectionSettings: {Selected: true},
		SectionChats:    {Selected: true},
		SectionWidgets:  {Selected: true},
	}
	if includeAPIKeys {
		tree[SectionAPIKeys] = SectionSelection{Selected: true}
	}
	return tree
}

// SectionInfo describes one section of a loaded document, reported
// without needing a password. Item IDs are only known for plaintext
// sections.
type SectionInfo struct {
	Name      string
	Encrypted bool
	ItemIDs   []string
}

// AvailableSections inspects a document and reports which sections it
// carries, for populating an import selection before any password entry.
func AvailableSections(doc *ExportDataV2) []SectionInfo {
	var infos []SectionInfo

	if c := doc.Contents; c != nil {
		if c.Settings != nil {
			infos = append(infos, SectionInfo{
				Name:    SectionSettings,
				ItemIDs: settingsSubItems(c.Settings),
			})
		}
		if c.Chats != nil {
			ids := make([]string, 0, len(c.Chats))
			for _, conv := range c.Chats {
				ids = append(ids, conv.ID)
			}
			infos = append(infos, SectionInfo{Name: SectionChats, ItemIDs: ids})
		}
		if c.Widgets != nil {
			ids := make([]string, 0, len(c.Widgets))
			for _, w := range c.Widgets {
				ids = append(ids, w.ID)
			}
			infos = append(infos, SectionInfo{Name: SectionWidgets, ItemIDs: ids})
		}
	}

	if e := doc.EncryptedSections; e != nil {
		for _, sec := range []struct {
			name string
			rec  *EncryptedSection
		}{
			{SectionAPIKeys, e.APIKeys},
			{SectionChats, e.Chats},
			{SectionSettings, e.Settings},
			{SectionWidgets, e.Widgets},
		} {
			if sec.rec != nil {
				infos = append(infos, SectionInfo{Name: sec.name, Encrypted: true})
			}
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// IsEncryptedExportV2 reports whether the document carries encrypted
// sections and therefore needs a password on import.
func IsEncryptedExportV2(doc *ExportDataV2) bool {
	return doc.Encrypted && doc.EncryptedSections != nil
}

// VerifyImportHash recomputes the integrity digest over the plaintext
// contents and compares it to the stored one. Documents without a hash
// verify as true: encrypted-only exports are authenticated by their GCM
// tags instead.
func VerifyImportHash(doc *ExportDataV2) bool {
	if doc.Hash == "" {
		return true
	}
	computed, err := canonicalHash(doc.Contents)
	if err != nil {
		return false
	}
	return computed == doc.Hash
}

// canonicalHash is the SHA-256 hex digest over the canonical JSON
// serialization of the plaintext contents.
func canonicalHash(c *Contents) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to serialize contents: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func settingsSubItems(s *prefs.Settings) []string {
	items := []string{SettingSearchEngine, SettingShortcuts, SettingChatPrefs}
	if len(s.QuickLinks) > 0 {
		items = append(items, SettingQuickLinks)
	}
	return items
}
