package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/session"
)

// Setup enables password protection for the profile
func Setup(app *App) {
	password, err := GetPasswordForSetup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	check := session.ValidatePassword(string(password))
	if !check.Valid {
		fmt.Fprintf(os.Stderr, "Error: %s\n", check.Message)
		os.Exit(1)
	}
	if !check.IsStrong {
		fmt.Printf("Note: %s\n", check.Message)
	}

	if err := app.Session.SetupPassword(password); err != nil {
		if errors.Is(err, session.ErrAlreadyConfigured) {
			fmt.Fprintln(os.Stderr, "Error: password protection is already enabled")
			fmt.Fprintln(os.Stderr, "Use 'horizen passwd' to change the password")
			os.Exit(1)
		}
		HandleError(err)
	}

	fmt.Println("✓ Password protection enabled")
}

// GetPasswordForSetup checks the environment first, then prompts with
// confirmation.
func GetPasswordForSetup() ([]byte, error) {
	if password := GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return ReadPasswordConfirm()
}
