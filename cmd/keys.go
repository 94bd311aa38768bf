package cmd

import (
	"fmt"
	"os"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
)

// KeysSet stores or replaces one provider API key
func KeysSet(app *App, provider string) {
	Unlock(app)

	value, err := ReadPassword(fmt.Sprintf("Enter API key for %s: ", provider))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(value)

	if err := app.Secrets.UpdateAPIKey(provider, string(value)); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ API key for %s saved\n", provider)
}

// KeysRemove deletes one provider API key
func KeysRemove(app *App, provider string) {
	Unlock(app)

	if err := app.Secrets.ClearAPIKey(provider); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ API key for %s removed\n", provider)
}

// KeysList shows which providers have a stored key. Values are never
// printed.
func KeysList(app *App) {
	Unlock(app)

	providers := app.Secrets.Providers()
	if len(providers) == 0 {
		fmt.Println("No API keys stored")
		return
	}

	fmt.Println("Stored API keys:")
	for _, provider := range providers {
		fmt.Printf("  %s\n", provider)
	}
}
