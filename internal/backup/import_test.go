package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

func docWithChats(t *testing.T, chats ...prefs.Conversation) *ExportDataV2 {
	t.Helper()
	doc, err := Build(BuildInput{Prefs: prefs.Prefs{Conversations: chats}}, SelectAll(false), nil)
	require.NoError(t, err)
	return doc
}

func chatOptions(strategy Strategy) Options {
	return Options{
		Selection:  SelectAll(false),
		Strategies: Strategies{Chats: strategy, QuickLinks: StrategyMerge, Widgets: StrategyMerge},
	}
}

func TestImportChatsAppend(t *testing.T) {
	current := prefs.Prefs{Conversations: []prefs.Conversation{{ID: "A", Title: "existing"}}}
	doc := docWithChats(t, prefs.Conversation{ID: "B", Title: "imported"})

	res, err := Import(doc, current, chatOptions(StrategyAppend))
	require.NoError(t, err)

	require.Len(t, res.Conversations, 2)
	assert.Equal(t, "A", res.Conversations[0].ID)
	assert.Equal(t, "B", res.Conversations[1].ID)
	assert.Zero(t, res.RegeneratedIDs)
}

func TestImportChatsReplace(t *testing.T) {
	current := prefs.Prefs{Conversations: []prefs.Conversation{{ID: "A"}}}
	doc := docWithChats(t, prefs.Conversation{ID: "B"})

	res, err := Import(doc, current, chatOptions(StrategyReplace))
	require.NoError(t, err)

	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "B", res.Conversations[0].ID)
}

func TestImportChatsAppendCollision(t *testing.T) {
	current := prefs.Prefs{Conversations: []prefs.Conversation{{ID: "A", Title: "mine"}}}
	doc := docWithChats(t, prefs.Conversation{ID: "A", Title: "theirs"})

	res, err := Import(doc, current, chatOptions(StrategyAppend))
	require.NoError(t, err)

	require.Len(t, res.Conversations, 2, "collision is resolved, not rejected")
	assert.NotEqual(t, res.Conversations[0].ID, res.Conversations[1].ID)
	assert.Equal(t, 1, res.RegeneratedIDs)
	assert.Equal(t, "theirs", res.Conversations[1].Title)
}

func TestImportQuickLinksMerge(t *testing.T) {
	current := prefs.Prefs{Settings: prefs.Settings{QuickLinks: []prefs.QuickLink{
		{ID: "l-1", Label: "News", URL: "https://old.example"},
	}}}
	imported := prefs.Prefs{Settings: prefs.Settings{QuickLinks: []prefs.QuickLink{
		{ID: "l-1", Label: "News", URL: "https://new.example"},
		{ID: "l-2", Label: "Mail", URL: "https://mail.example"},
	}}}
	doc, err := Build(BuildInput{Prefs: imported}, SelectAll(false), nil)
	require.NoError(t, err)

	res, err := Import(doc, current, chatOptions(StrategyAppend))
	require.NoError(t, err)

	require.Len(t, res.QuickLinks, 2)
	assert.Equal(t, "https://old.example", res.QuickLinks[0].URL, "existing entries win on conflict")
	assert.Equal(t, "l-2", res.QuickLinks[1].ID)
}

func TestImportQuickLinksReplace(t *testing.T) {
	current := prefs.Prefs{Settings: prefs.Settings{QuickLinks: []prefs.QuickLink{{ID: "l-1"}}}}
	imported := prefs.Prefs{Settings: prefs.Settings{QuickLinks: []prefs.QuickLink{{ID: "l-9"}}}}
	doc, err := Build(BuildInput{Prefs: imported}, SelectAll(false), nil)
	require.NoError(t, err)

	opts := chatOptions(StrategyAppend)
	opts.Strategies.QuickLinks = StrategyReplace
	res, err := Import(doc, current, opts)
	require.NoError(t, err)

	require.Len(t, res.QuickLinks, 1)
	assert.Equal(t, "l-9", res.QuickLinks[0].ID)
}

func TestImportWidgetsHabitUnion(t *testing.T) {
	current := prefs.Prefs{Widgets: []prefs.Widget{
		{ID: "w-habits", Type: "habits", Enabled: true, Habits: []string{"read", "run"}},
	}}
	imported := prefs.Prefs{Widgets: []prefs.Widget{
		{ID: "w-habits", Type: "habits", Enabled: true, Habits: []string{"run", "meditate"}},
		{ID: "w-ticker", Type: "ticker", Enabled: true},
	}}
	doc, err := Build(BuildInput{Prefs: imported}, SelectAll(false), nil)
	require.NoError(t, err)

	res, err := Import(doc, current, chatOptions(StrategyAppend))
	require.NoError(t, err)

	require.Len(t, res.Widgets, 2)
	assert.Equal(t, []string{"read", "run", "meditate"}, res.Widgets[0].Habits,
		"habit lists are unioned, not overwritten")
	assert.Equal(t, "w-ticker", res.Widgets[1].ID)
}

func TestImportSettingsOverwrite(t *testing.T) {
	current := prefs.Prefs{Settings: prefs.Settings{
		SearchEngine: "duckduckgo",
		ChatPrefs:    prefs.ChatPrefs{DefaultProvider: "openai"},
	}}
	imported := prefs.Prefs{Settings: prefs.Settings{
		SearchEngine: "startpage",
		ChatPrefs:    prefs.ChatPrefs{DefaultProvider: "anthropic"},
	}}
	doc, err := Build(BuildInput{Prefs: imported}, SelectAll(false), nil)
	require.NoError(t, err)

	res, err := Import(doc, current, chatOptions(StrategyAppend))
	require.NoError(t, err)

	assert.Equal(t, "startpage", res.Settings.SearchEngine)
	assert.Equal(t, "anthropic", res.Settings.ChatPrefs.DefaultProvider)
}

func TestImportSettingsSubItemSelection(t *testing.T) {
	current := prefs.Prefs{Settings: prefs.Settings{
		SearchEngine: "duckduckgo",
		ChatPrefs:    prefs.ChatPrefs{DefaultProvider: "openai"},
	}}
	imported := prefs.Prefs{Settings: prefs.Settings{
		SearchEngine: "startpage",
		ChatPrefs:    prefs.ChatPrefs{DefaultProvider: "anthropic"},
	}}
	doc, err := Build(BuildInput{Prefs: imported}, SelectAll(false), nil)
	require.NoError(t, err)

	opts := chatOptions(StrategyAppend)
	opts.Selection = SelectionTree{
		SectionSettings: {Selected: true, Items: map[string]bool{SettingSearchEngine: true}},
	}
	res, err := Import(doc, current, opts)
	require.NoError(t, err)

	assert.Equal(t, "startpage", res.Settings.SearchEngine)
	assert.Equal(t, "openai", res.Settings.ChatPrefs.DefaultProvider,
		"unselected sub-items stay untouched")
}

func TestImportEncryptedRoundTrip(t *testing.T) {
	password := []byte("backup password")
	imported := prefs.Prefs{Conversations: []prefs.Conversation{{ID: "B", Title: "secret chat"}}}
	doc, err := Build(BuildInput{
		Prefs:   imported,
		APIKeys: map[string]string{"openai": "sk-live"},
	}, SelectAll(true), password)
	require.NoError(t, err)

	opts := chatOptions(StrategyAppend)
	opts.Selection = SelectAll(true)
	opts.Password = password

	res, err := Import(doc, prefs.Prefs{}, opts)
	require.NoError(t, err)

	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "secret chat", res.Conversations[0].Title)
	require.NotNil(t, res.APIKeys)
	assert.Equal(t, "sk-live", res.APIKeys["openai"])
}

func TestImportEncryptedWrongPassword(t *testing.T) {
	doc, err := Build(BuildInput{
		Prefs: prefs.Prefs{Conversations: []prefs.Conversation{{ID: "B"}}},
	}, SelectAll(false), []byte("right password"))
	require.NoError(t, err)

	opts := chatOptions(StrategyAppend)
	opts.Password = []byte("wrong password")

	_, err = Import(doc, prefs.Prefs{}, opts)
	assert.ErrorIs(t, err, crypto.ErrAuthFailed, "wrong password is an error, never silently no data")
}

func TestImportEncryptedNoPassword(t *testing.T) {
	doc, err := Build(BuildInput{
		Prefs: prefs.Prefs{Conversations: []prefs.Conversation{{ID: "B"}}},
	}, SelectAll(false), []byte("password"))
	require.NoError(t, err)

	_, err = Import(doc, prefs.Prefs{}, chatOptions(StrategyAppend))
	assert.ErrorIs(t, err, ErrEncryptionRequired)
}

func TestImportIntegrityMismatch(t *testing.T) {
	doc := docWithChats(t, prefs.Conversation{ID: "B", Title: "original"})
	doc.Contents.Chats[0].Title = "tampered"

	_, err := Import(doc, prefs.Prefs{}, chatOptions(StrategyAppend))
	assert.ErrorIs(t, err, ErrIntegrityMismatch)

	// The explicit override still applies the document
	opts := chatOptions(StrategyAppend)
	opts.SkipIntegrityCheck = true
	res, err := Import(doc, prefs.Prefs{}, opts)
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
}

func TestImportCreateBackup(t *testing.T) {
	current := prefs.Prefs{
		Conversations: []prefs.Conversation{{ID: "A"}},
		Settings:      prefs.Settings{SearchEngine: "duckduckgo"},
	}
	doc := docWithChats(t, prefs.Conversation{ID: "B"})

	opts := chatOptions(StrategyAppend)
	opts.CreateBackup = true
	res, err := Import(doc, current, opts)
	require.NoError(t, err)

	require.NotNil(t, res.Backup)
	assert.True(t, VerifyImportHash(res.Backup))
	require.Len(t, res.Backup.Contents.Chats, 1)
	assert.Equal(t, "A", res.Backup.Contents.Chats[0].ID, "backup snapshots the pre-import state")
}

func TestImportUnselectedSectionUntouched(t *testing.T) {
	current := prefs.Prefs{Conversations: []prefs.Conversation{{ID: "A"}}}
	doc := docWithChats(t, prefs.Conversation{ID: "B"})

	opts := chatOptions(StrategyAppend)
	opts.Selection = SelectionTree{SectionSettings: {Selected: true}}
	res, err := Import(doc, current, opts)
	require.NoError(t, err)

	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "A", res.Conversations[0].ID)
}
