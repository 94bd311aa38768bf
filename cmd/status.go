package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

// Status shows the protection state of the profile. No password required.
func Status(app *App) {
	fmt.Printf("Protection: %s\n", app.Session.State())

	cfg, err := app.Storage.SecurityConfig()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("Run 'horizen setup' to enable password protection")
	case err != nil:
		HandleError(err)
	case cfg.Enabled:
		fmt.Printf("KDF iterations: %d\n", cfg.Iterations)
		fmt.Printf("Session timeout: %d minutes\n", cfg.SessionTimeoutMinutes)
	}

	if _, err := app.Storage.SecretBlob(); err == nil {
		fmt.Println("API keys: stored (encrypted)")
	} else {
		fmt.Println("API keys: none stored")
	}

	if modified, err := app.Storage.GetModified(); err == nil {
		fmt.Printf("Last modified: %s\n", modified.Format(time.RFC3339))
	}
}

// Timeout updates the persisted session idle timeout
func Timeout(app *App, minutes int) {
	if err := app.Session.SetSessionTimeout(minutes); err != nil {
		HandleError(err)
	}
	fmt.Printf("✓ Session timeout set to %d minutes\n", minutes)
}
