package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

var (
	// ErrEncryptionRequired rejects any attempt to export credentials
	// without a password. They never leave the device in plaintext.
	ErrEncryptionRequired = errors.New("api keys can only be exported with a password")

	// ErrIntegrityMismatch means the document hash does not match its
	// contents. Tamper or corruption.
	ErrIntegrityMismatch = errors.New("integrity hash mismatch")
)

// BuildInput is the state an export snapshot is taken from.
type BuildInput struct {
	Prefs      prefs.Prefs
	APIKeys    map[string]string
	AppVersion string
}

// Build assembles an ExportDataV2 from the selected data. Ephemeral
// conversations and disabled widgets are always excluded. When password
// is non-empty every selected section is encrypted independently under a
// key derived from it and a fresh export-scoped salt; otherwise sections
// are written in plaintext and covered by the integrity hash. Selecting
// apiKeys without a password fails before anything is read or written.
func Build(in BuildInput, selection SelectionTree, password []byte) (*ExportDataV2, error) {
	apiSel := selection.Section(SectionAPIKeys)
	if apiSel.Selected && len(password) == 0 {
		return nil, ErrEncryptionRequired
	}

	doc := &ExportDataV2{
		Version:    FormatVersion,
		AppVersion: in.AppVersion,
		ExportedAt: time.Now().UTC(),
	}

	contents := &Contents{}
	if sel := selection.Section(SectionSettings); sel.Selected {
		settings := filterSettings(in.Prefs.Settings, sel)
		contents.Settings = &settings
	}
	if sel := selection.Section(SectionChats); sel.Selected {
		contents.Chats = filterChats(in.Prefs.Conversations, sel)
	}
	if sel := selection.Section(SectionWidgets); sel.Selected {
		contents.Widgets = filterWidgets(in.Prefs.Widgets, sel)
	}

	if len(password) == 0 {
		doc.Contents = contents
		hash, err := canonicalHash(contents)
		if err != nil {
			return nil, err
		}
		doc.Hash = hash
		return doc, nil
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return nil, err
	}
	key := kdf.DeriveKey(password)
	defer crypto.ClearBytes(key)
	enc := crypto.NewEncryptor(key)

	doc.Encrypted = true
	doc.Salt = kdf.Salt
	doc.EncryptedSections = &EncryptedSections{}

	if contents.Settings != nil {
		doc.EncryptedSections.Settings, err = sealSection(enc, contents.Settings)
		if err != nil {
			return nil, err
		}
	}
	if contents.Chats != nil {
		doc.EncryptedSections.Chats, err = sealSection(enc, contents.Chats)
		if err != nil {
			return nil, err
		}
	}
	if contents.Widgets != nil {
		doc.EncryptedSections.Widgets, err = sealSection(enc, contents.Widgets)
		if err != nil {
			return nil, err
		}
	}
	if apiSel.Selected {
		keys := map[string]string{}
		for provider, value := range in.APIKeys {
			if apiSel.Includes(provider) {
				keys[provider] = value
			}
		}
		doc.EncryptedSections.APIKeys, err = sealSection(enc, keys)
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// DecryptSection re-derives the export key from password and salt and
// decrypts one section. Returns crypto.ErrAuthFailed for a wrong password
// or tampered ciphertext. Within one document every section shares the
// same derivation inputs, so one successful open implies the password
// fits the rest.
func DecryptSection(data, iv, password, salt []byte) ([]byte, error) {
	kdf := &crypto.KDF{Salt: salt, Iterations: crypto.DefaultIters}
	key := kdf.DeriveKey(password)
	defer crypto.ClearBytes(key)
	return crypto.NewEncryptor(key).Open(data, iv)
}

// Marshal renders the document as the UTF-8 JSON written to the export
// file.
func Marshal(doc *ExportDataV2) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// Unmarshal parses an export file.
func Unmarshal(data []byte) (*ExportDataV2, error) {
	doc := &ExportDataV2{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("not an export document")
	}
	return doc, nil
}

func sealSection(enc *crypto.Encryptor, payload any) (*EncryptedSection, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize section: %w", err)
	}
	defer crypto.ClearBytes(plaintext)
	ct, iv, err := enc.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	return &EncryptedSection{Data: ct, IV: iv}, nil
}

// filterSettings keeps the selected sub-items and zeroes the rest.
func filterSettings(s prefs.Settings, sel SectionSelection) prefs.Settings {
	if len(sel.Items) == 0 {
		return s
	}
	out := prefs.Settings{}
	if sel.Includes(SettingSearchEngine) {
		out.SearchEngine = s.SearchEngine
	}
	if sel.Includes(SettingShortcuts) {
		out.ShowShortcuts = s.ShowShortcuts
	}
	if sel.Includes(SettingChatPrefs) {
		out.ChatPrefs = s.ChatPrefs
	}
	if sel.Includes(SettingQuickLinks) {
		out.QuickLinks = s.QuickLinks
	}
	return out
}

// filterChats drops ephemeral conversations and applies item selection.
func filterChats(convs []prefs.Conversation, sel SectionSelection) []prefs.Conversation {
	out := make([]prefs.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.Ephemeral {
			continue
		}
		if sel.Includes(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// filterWidgets keeps enabled widgets matching the selection.
func filterWidgets(widgets []prefs.Widget, sel SectionSelection) []prefs.Widget {
	out := make([]prefs.Widget, 0, len(widgets))
	for _, w := range widgets {
		if !w.Enabled {
			continue
		}
		if sel.Includes(w.ID) {
			out = append(out, w)
		}
	}
	return out
}
