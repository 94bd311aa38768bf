package backup

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

// Strategy is the declared policy for combining imported items with
// existing local items of the same resource type.
type Strategy string

const (
	// StrategyAppend keeps existing items and adds imported ones,
	// regenerating colliding IDs. Chats only.
	StrategyAppend Strategy = "append"
	// StrategyReplace discards existing items of the resource entirely.
	StrategyReplace Strategy = "replace"
	// StrategyMerge unions by identity with existing entries winning on
	// conflict. Quick links and widgets.
	StrategyMerge Strategy = "merge"
)

// Strategies declares the per-resource merge policies.
type Strategies struct {
	Chats      Strategy
	QuickLinks Strategy
	Widgets    Strategy
}

// DefaultStrategies is the conservative default: nothing existing is
// discarded.
func DefaultStrategies() Strategies {
	return Strategies{
		Chats:      StrategyAppend,
		QuickLinks: StrategyMerge,
		Widgets:    StrategyMerge,
	}
}

// Options drives one import run.
type Options struct {
	Selection  SelectionTree
	Strategies Strategies
	Password   []byte
	// CreateBackup asks for a plaintext snapshot of the current state,
	// returned in the result for the caller to write before applying.
	CreateBackup bool
	// SkipIntegrityCheck is the explicit user override for a failed hash
	// check. Never set it silently.
	SkipIntegrityCheck bool
	AppVersion         string
}

// Result is the reconciliation output the caller applies to the
// preference store and, for APIKeys, the secret store.
type Result struct {
	Conversations []prefs.Conversation
	QuickLinks    []prefs.QuickLink
	Widgets       []prefs.Widget
	Settings      prefs.Settings
	// APIKeys holds imported credentials to merge into the secret store.
	// Nil when the section was not selected.
	APIKeys map[string]string
	// Backup is the pre-import snapshot when requested.
	Backup *ExportDataV2
	// RegeneratedIDs counts conversations that got a fresh ID because the
	// imported one collided with an existing conversation.
	RegeneratedIDs int
}

// Import validates, decrypts, and reconciles an export document against
// the current preference state. A wrong password surfaces as
// crypto.ErrAuthFailed, never as an empty import.
func Import(doc *ExportDataV2, current prefs.Prefs, opts Options) (*Result, error) {
	if !opts.SkipIntegrityCheck && !VerifyImportHash(doc) {
		return nil, ErrIntegrityMismatch
	}

	var key []byte
	if needsKey(doc, opts.Selection) {
		if len(opts.Password) == 0 {
			return nil, fmt.Errorf("document is encrypted: %w", ErrEncryptionRequired)
		}
		kdf := &crypto.KDF{Salt: doc.Salt, Iterations: crypto.DefaultIters}
		key = kdf.DeriveKey(opts.Password)
		defer crypto.ClearBytes(key)
	}

	res := &Result{
		Conversations: current.Conversations,
		QuickLinks:    current.Settings.QuickLinks,
		Widgets:       current.Widgets,
		Settings:      current.Settings,
	}

	if opts.CreateBackup {
		backup, err := Build(BuildInput{Prefs: current, AppVersion: opts.AppVersion}, SelectAll(false), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot current state: %w", err)
		}
		res.Backup = backup
	}

	if sel := opts.Selection.Section(SectionChats); sel.Selected {
		var imported []prefs.Conversation
		ok, err := section(doc, SectionChats, key, &imported)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Conversations, res.RegeneratedIDs = mergeChats(current.Conversations, selectChats(imported, sel), opts.Strategies.Chats)
		}
	}

	if sel := opts.Selection.Section(SectionWidgets); sel.Selected {
		var imported []prefs.Widget
		ok, err := section(doc, SectionWidgets, key, &imported)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Widgets = mergeWidgets(current.Widgets, selectWidgets(imported, sel), opts.Strategies.Widgets)
		}
	}

	if sel := opts.Selection.Section(SectionSettings); sel.Selected {
		var imported prefs.Settings
		ok, err := section(doc, SectionSettings, key, &imported)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Settings = applySettings(res.Settings, imported, sel)
			res.QuickLinks = mergeQuickLinks(current.Settings.QuickLinks, imported.QuickLinks, sel, opts.Strategies.QuickLinks)
			res.Settings.QuickLinks = res.QuickLinks
		}
	}

	if sel := opts.Selection.Section(SectionAPIKeys); sel.Selected {
		var imported map[string]string
		ok, err := section(doc, SectionAPIKeys, key, &imported)
		if err != nil {
			return nil, err
		}
		if ok {
			res.APIKeys = map[string]string{}
			for provider, value := range imported {
				if sel.Includes(provider) {
					res.APIKeys[provider] = value
				}
			}
		}
	}

	return res, nil
}

// needsKey reports whether any selected section only exists encrypted.
func needsKey(doc *ExportDataV2, selection SelectionTree) bool {
	e := doc.EncryptedSections
	if e == nil {
		return false
	}
	for name, rec := range map[string]*EncryptedSection{
		SectionAPIKeys:  e.APIKeys,
		SectionChats:    e.Chats,
		SectionSettings: e.Settings,
		SectionWidgets:  e.Widgets,
	} {
		if rec != nil && selection.Section(name).Selected {
			return true
		}
	}
	return false
}

// section extracts one section payload, decrypting when necessary.
// Returns false when the document does not carry the section at all.
func section(doc *ExportDataV2, name string, key []byte, out any) (bool, error) {
	if c := doc.Contents; c != nil {
		var payload any
		switch name {
		case SectionSettings:
			if c.Settings != nil {
				payload = c.Settings
			}
		case SectionChats:
			if c.Chats != nil {
				payload = c.Chats
			}
		case SectionWidgets:
			if c.Widgets != nil {
				payload = c.Widgets
			}
		}
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return false, err
			}
			return true, json.Unmarshal(data, out)
		}
	}

	var rec *EncryptedSection
	if e := doc.EncryptedSections; e != nil {
		switch name {
		case SectionAPIKeys:
			rec = e.APIKeys
		case SectionChats:
			rec = e.Chats
		case SectionSettings:
			rec = e.Settings
		case SectionWidgets:
			rec = e.Widgets
		}
	}
	if rec == nil {
		return false, nil
	}

	enc := crypto.NewEncryptor(key)
	plaintext, err := enc.Open(rec.Data, rec.IV)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt %s section: %w", name, err)
	}
	defer crypto.ClearBytes(plaintext)
	if err := json.Unmarshal(plaintext, out); err != nil {
		return false, fmt.Errorf("failed to decode %s section: %w", name, err)
	}
	return true, nil
}

func selectChats(convs []prefs.Conversation, sel SectionSelection) []prefs.Conversation {
	out := make([]prefs.Conversation, 0, len(convs))
	for _, c := range convs {
		if sel.Includes(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

func selectWidgets(widgets []prefs.Widget, sel SectionSelection) []prefs.Widget {
	out := make([]prefs.Widget, 0, len(widgets))
	for _, w := range widgets {
		if sel.Includes(w.ID) {
			out = append(out, w)
		}
	}
	return out
}

// mergeChats applies the chat strategy. Append resolves ID collisions by
// giving the imported conversation a fresh ID rather than rejecting it.
func mergeChats(existing, imported []prefs.Conversation, strategy Strategy) ([]prefs.Conversation, int) {
	if strategy == StrategyReplace {
		return imported, 0
	}

	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.ID] = true
	}

	regenerated := 0
	out := append([]prefs.Conversation(nil), existing...)
	for _, c := range imported {
		if seen[c.ID] {
			c.ID = uuid.NewString()
			regenerated++
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, regenerated
}

// mergeWidgets unions by ID with existing entries winning, except habit
// lists, which are concatenated rather than overwritten.
func mergeWidgets(existing, imported []prefs.Widget, strategy Strategy) []prefs.Widget {
	if strategy == StrategyReplace {
		return imported
	}

	index := make(map[string]int, len(existing))
	out := append([]prefs.Widget(nil), existing...)
	for i, w := range out {
		index[w.ID] = i
	}

	for _, w := range imported {
		i, ok := index[w.ID]
		if !ok {
			index[w.ID] = len(out)
			out = append(out, w)
			continue
		}
		if len(w.Habits) > 0 {
			out[i].Habits = unionStrings(out[i].Habits, w.Habits)
		}
	}
	return out
}

func mergeQuickLinks(existing, imported []prefs.QuickLink, sel SectionSelection, strategy Strategy) []prefs.QuickLink {
	if !sel.Includes(SettingQuickLinks) {
		return existing
	}
	if strategy == StrategyReplace {
		return imported
	}

	seen := make(map[string]bool, len(existing))
	out := append([]prefs.QuickLink(nil), existing...)
	for _, l := range out {
		seen[l.ID] = true
	}
	for _, l := range imported {
		if !seen[l.ID] {
			seen[l.ID] = true
			out = append(out, l)
		}
	}
	return out
}

// applySettings overwrites the selected scalar sub-items. There is no
// merge strategy for scalars.
func applySettings(current, imported prefs.Settings, sel SectionSelection) prefs.Settings {
	out := current
	if sel.Includes(SettingSearchEngine) {
		out.SearchEngine = imported.SearchEngine
	}
	if sel.Includes(SettingShortcuts) {
		out.ShowShortcuts = imported.ShowShortcuts
	}
	if sel.Includes(SettingChatPrefs) {
		out.ChatPrefs = imported.ChatPrefs
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
