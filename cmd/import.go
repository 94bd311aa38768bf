package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/backup"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
)

// ImportOptions are the parsed import flags
type ImportOptions struct {
	File       string
	Sections   []string
	Chats      string // append|replace
	QuickLinks string // merge|replace
	Widgets    string // merge|replace
	BackupFile string
	Force      bool // proceed despite a failed integrity check
}

// Import applies a backup document to the profile
func Import(app *App, opts ImportOptions) {
	data, err := os.ReadFile(opts.File)
	if err != nil {
		HandleError(err)
	}
	doc, err := backup.Unmarshal(data)
	if err != nil {
		HandleError(err)
	}

	available := backup.AvailableSections(doc)
	if len(available) == 0 {
		fmt.Fprintln(os.Stderr, "Error: document contains no sections")
		os.Exit(1)
	}
	fmt.Println("Sections in document:")
	for _, info := range available {
		suffix := ""
		if info.Encrypted {
			suffix = " (encrypted)"
		} else if len(info.ItemIDs) > 0 {
			suffix = fmt.Sprintf(" (%d items)", len(info.ItemIDs))
		}
		fmt.Printf("  %s%s\n", info.Name, suffix)
	}

	selection, _ := parseSections(opts.Sections)
	if len(opts.Sections) == 0 {
		// Unlike export, an unrestricted import also applies api keys
		// when the document carries them.
		selection = backup.SelectAll(true)
	}

	var password []byte
	if backup.IsEncryptedExportV2(doc) {
		password = GetPasswordOrExit("Enter backup password: ")
		defer crypto.ClearBytes(password)
	}

	current, err := app.Prefs.Prefs()
	if err != nil {
		HandleError(err)
	}

	result, err := backup.Import(doc, current, backup.Options{
		Selection: selection,
		Strategies: backup.Strategies{
			Chats:      backup.Strategy(opts.Chats),
			QuickLinks: backup.Strategy(opts.QuickLinks),
			Widgets:    backup.Strategy(opts.Widgets),
		},
		Password:           password,
		CreateBackup:       opts.BackupFile != "",
		SkipIntegrityCheck: opts.Force,
		AppVersion:         AppVersion,
	})
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrIntegrityMismatch):
			fmt.Fprintln(os.Stderr, "Error: integrity check failed, the document was modified or corrupted")
			fmt.Fprintln(os.Stderr, "Re-run with -force to import it anyway")
		case errors.Is(err, crypto.ErrAuthFailed):
			fmt.Fprintln(os.Stderr, "Error: wrong backup password or tampered document")
		default:
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}

	if result.Backup != nil {
		backupData, err := backup.Marshal(result.Backup)
		if err != nil {
			HandleError(err)
		}
		if err := os.WriteFile(opts.BackupFile, backupData, 0600); err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Pre-import backup written to %s\n", opts.BackupFile)
	}

	printSettingsDiff(current.Settings, result.Settings)

	if err := app.Prefs.SetPrefs(func(prefs.Prefs) prefs.Prefs {
		return prefs.Prefs{
			Conversations: result.Conversations,
			Widgets:       result.Widgets,
			Settings:      result.Settings,
		}
	}); err != nil {
		HandleError(err)
	}

	if len(result.APIKeys) > 0 {
		Unlock(app)
		if err := app.Secrets.SaveAPIKeys(result.APIKeys); err != nil {
			HandleError(err)
		}
	}

	fmt.Printf("✓ Imported: %d conversations, %d quick links, %d widgets",
		len(result.Conversations), len(result.QuickLinks), len(result.Widgets))
	if len(result.APIKeys) > 0 {
		fmt.Printf(", %d API keys", len(result.APIKeys))
	}
	fmt.Println()
	if result.RegeneratedIDs > 0 {
		fmt.Printf("  %d imported conversations got new IDs to avoid collisions\n", result.RegeneratedIDs)
	}
}

// printSettingsDiff shows what the settings overwrite changes before it
// lands.
func printSettingsDiff(before, after prefs.Settings) {
	oldJSON, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return
	}
	newJSON, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return
	}
	if string(oldJSON) == string(newJSON) {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(oldJSON), string(newJSON), false)
	fmt.Println("Settings changes:")
	fmt.Println(dmp.DiffPrettyText(diffs))
}
