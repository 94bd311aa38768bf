package backup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

func samplePrefs() prefs.Prefs {
	return prefs.Prefs{
		Conversations: []prefs.Conversation{
			{ID: "conv-a", Title: "Trip planning", Provider: "openai", Messages: []prefs.Message{
				{Role: "user", Content: "hello"},
			}},
			{ID: "conv-ghost", Title: "Ghost chat", Ephemeral: true},
		},
		Widgets: []prefs.Widget{
			{ID: "w-weather", Type: "weather", Enabled: true},
			{ID: "w-habits", Type: "habits", Enabled: true, Habits: []string{"read", "run"}},
			{ID: "w-off", Type: "pomodoro", Enabled: false},
		},
		Settings: prefs.Settings{
			SearchEngine:  "duckduckgo",
			ShowShortcuts: true,
			ChatPrefs:     prefs.ChatPrefs{DefaultProvider: "openai", DefaultModel: "gpt-4o"},
			QuickLinks: []prefs.QuickLink{
				{ID: "l-1", Label: "News", URL: "https://example.org"},
			},
		},
	}
}

func TestBuildPlaintext(t *testing.T) {
	doc, err := Build(BuildInput{Prefs: samplePrefs(), AppVersion: "test"}, SelectAll(false), nil)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, doc.Version)
	assert.False(t, doc.Encrypted)
	assert.Nil(t, doc.EncryptedSections)
	require.NotNil(t, doc.Contents)
	assert.NotEmpty(t, doc.Hash)
	assert.True(t, VerifyImportHash(doc))

	require.Len(t, doc.Contents.Chats, 1, "ephemeral conversations must not be exported")
	assert.Equal(t, "conv-a", doc.Contents.Chats[0].ID)

	require.Len(t, doc.Contents.Widgets, 2, "disabled widgets must not be exported")

	require.NotNil(t, doc.Contents.Settings)
	assert.Equal(t, "duckduckgo", doc.Contents.Settings.SearchEngine)
}

func TestBuildAPIKeysRequirePassword(t *testing.T) {
	selection := SelectAll(true)

	_, err := Build(BuildInput{Prefs: samplePrefs(), APIKeys: map[string]string{"openai": "sk"}}, selection, nil)
	assert.ErrorIs(t, err, ErrEncryptionRequired)
}

func TestBuildEncryptedDistinctIVs(t *testing.T) {
	in := BuildInput{
		Prefs:   samplePrefs(),
		APIKeys: map[string]string{"openai": "sk-test", "anthropic": "sk-ant"},
	}
	selection := SelectionTree{
		SectionAPIKeys:  {Selected: true},
		SectionChats:    {Selected: true},
		SectionSettings: {Selected: true},
	}

	doc, err := Build(in, selection, []byte("backup password"))
	require.NoError(t, err)

	assert.True(t, doc.Encrypted)
	assert.NotEmpty(t, doc.Salt)
	assert.Nil(t, doc.Contents)
	assert.Empty(t, doc.Hash)
	require.NotNil(t, doc.EncryptedSections)

	ivs := map[string]bool{}
	for _, sec := range []*EncryptedSection{
		doc.EncryptedSections.APIKeys,
		doc.EncryptedSections.Chats,
		doc.EncryptedSections.Settings,
	} {
		require.NotNil(t, sec)
		require.Len(t, sec.IV, crypto.IVSize)
		ivs[string(sec.IV)] = true
	}
	assert.Len(t, ivs, 3, "no two sections may share an IV")
}

func TestDecryptSectionRoundTrip(t *testing.T) {
	password := []byte("backup password")
	doc, err := Build(BuildInput{Prefs: samplePrefs()}, SelectAll(false), password)
	require.NoError(t, err)

	sec := doc.EncryptedSections.Chats
	require.NotNil(t, sec)

	plaintext, err := DecryptSection(sec.Data, sec.IV, password, doc.Salt)
	require.NoError(t, err)

	var chats []prefs.Conversation
	require.NoError(t, json.Unmarshal(plaintext, &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, "conv-a", chats[0].ID)
}

func TestDecryptSectionWrongPassword(t *testing.T) {
	doc, err := Build(BuildInput{Prefs: samplePrefs()}, SelectAll(false), []byte("right password"))
	require.NoError(t, err)

	sec := doc.EncryptedSections.Chats
	_, err = DecryptSection(sec.Data, sec.IV, []byte("wrong password"), doc.Salt)
	assert.ErrorIs(t, err, crypto.ErrAuthFailed, "wrong password must fail loudly, never return garbage")
}

func TestVerifyImportHashTamper(t *testing.T) {
	doc, err := Build(BuildInput{Prefs: samplePrefs()}, SelectAll(false), nil)
	require.NoError(t, err)
	require.True(t, VerifyImportHash(doc))

	doc.Contents.Chats[0].Title = "edited after export"
	assert.False(t, VerifyImportHash(doc))
}

func TestVerifyImportHashAbsent(t *testing.T) {
	doc := &ExportDataV2{Version: FormatVersion, Encrypted: true}
	assert.True(t, VerifyImportHash(doc), "encrypted-only documents carry no hash and verify true")
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := Build(BuildInput{Prefs: samplePrefs(), AppVersion: "test"}, SelectAll(false), nil)
	require.NoError(t, err)

	data, err := Marshal(doc)
	require.NoError(t, err)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, VerifyImportHash(parsed), "hash must survive serialization")
	assert.Equal(t, doc.Hash, parsed.Hash)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte(`{"foo": 1}`))
	assert.Error(t, err)
}

func TestAvailableSections(t *testing.T) {
	plain, err := Build(BuildInput{Prefs: samplePrefs()}, SelectAll(false), nil)
	require.NoError(t, err)

	infos := AvailableSections(plain)
	names := map[string]SectionInfo{}
	for _, info := range infos {
		names[info.Name] = info
	}
	require.Contains(t, names, SectionChats)
	assert.Equal(t, []string{"conv-a"}, names[SectionChats].ItemIDs)
	assert.False(t, names[SectionChats].Encrypted)

	encrypted, err := Build(BuildInput{Prefs: samplePrefs()}, SelectAll(false), []byte("pw"))
	require.NoError(t, err)

	infos = AvailableSections(encrypted)
	for _, info := range infos {
		assert.True(t, info.Encrypted)
		assert.Empty(t, info.ItemIDs, "item IDs are unknown without a password")
	}
}

func TestBuildItemSelection(t *testing.T) {
	in := BuildInput{Prefs: prefs.Prefs{
		Conversations: []prefs.Conversation{
			{ID: "keep"}, {ID: "skip"},
		},
	}}
	selection := SelectionTree{
		SectionChats: {Selected: true, Items: map[string]bool{"keep": true}},
	}

	doc, err := Build(in, selection, nil)
	require.NoError(t, err)
	require.Len(t, doc.Contents.Chats, 1)
	assert.Equal(t, "keep", doc.Contents.Chats[0].ID)
}
