package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/session"
)

// Passwd changes the protection password
func Passwd(app *App) {
	currentPassword := GetPasswordOrExit("Enter current password: ")
	defer crypto.ClearBytes(currentPassword)

	newPassword, err := ReadPasswordConfirm()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(newPassword)

	ok, err := app.Session.ChangePassword(currentPassword, newPassword)
	if err != nil {
		if errors.Is(err, session.ErrWeakPassword) {
			fmt.Fprintln(os.Stderr, "Error: new password must be at least 6 characters")
			os.Exit(1)
		}
		HandleError(err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: wrong password")
		os.Exit(1)
	}

	fmt.Println("✓ Password changed successfully")
}
