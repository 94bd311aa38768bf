package cmd

import (
	"fmt"
)

// Disable turns password protection off, moving credentials to a random
// key in the OS keyring. Destructive for the password regime, so it asks
// for an explicit confirmation.
func Disable(app *App) {
	if !Confirm("Disabling password protection stores credentials under a keyring key instead.") {
		fmt.Println("Aborted")
		return
	}

	Unlock(app)

	if err := app.Session.DisablePasswordProtection(); err != nil {
		HandleError(err)
	}

	fmt.Println("✓ Password protection disabled")
}

// Forget is the destructive forgot-password path: encrypted credentials
// and the security config are deleted outright.
func Forget(app *App) {
	if !Confirm("This permanently deletes all stored API keys.") {
		fmt.Println("Aborted")
		return
	}

	if err := app.Session.ForgetPassword(); err != nil {
		HandleError(err)
	}

	fmt.Println("✓ Password protection reset, stored API keys deleted")
}
