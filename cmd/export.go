package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/backup"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
)

// ExportOptions are the parsed export flags
type ExportOptions struct {
	Output   string
	Sections []string // empty means all non-credential sections
	Encrypt  bool
}

// Export writes a backup document to a file
func Export(app *App, opts ExportOptions) {
	selection, includeKeys := parseSections(opts.Sections)

	var password []byte
	if opts.Encrypt || includeKeys {
		var err error
		password, err = GetPasswordForSetup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		defer crypto.ClearBytes(password)
	}

	var apiKeys map[string]string
	if includeKeys {
		Unlock(app)
		apiKeys = app.Secrets.APIKeys()
	}

	current, err := app.Prefs.Prefs()
	if err != nil {
		HandleError(err)
	}

	doc, err := backup.Build(backup.BuildInput{
		Prefs:      current,
		APIKeys:    apiKeys,
		AppVersion: AppVersion,
	}, selection, password)
	if err != nil {
		if errors.Is(err, backup.ErrEncryptionRequired) {
			fmt.Fprintln(os.Stderr, "Error: exporting API keys requires a password")
			os.Exit(1)
		}
		HandleError(err)
	}

	data, err := backup.Marshal(doc)
	if err != nil {
		HandleError(err)
	}
	if err := os.WriteFile(opts.Output, data, 0600); err != nil {
		HandleError(err)
	}

	kind := "plaintext"
	if doc.Encrypted {
		kind = "encrypted"
	}
	fmt.Printf("✓ Exported %s backup to %s\n", kind, opts.Output)
}

// parseSections turns the -sections flag into a selection tree.
func parseSections(names []string) (backup.SelectionTree, bool) {
	if len(names) == 0 {
		return backup.SelectAll(false), false
	}

	tree := backup.SelectionTree{}
	includeKeys := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == backup.SectionAPIKeys {
			includeKeys = true
		}
		tree[name] = backup.SectionSelection{Selected: true}
	}
	return tree, includeKeys
}
