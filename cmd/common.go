package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/Agent-Kwabbel/Horizen-sub001/internal/crypto"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/keyring"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/logger"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/prefs"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/secrets"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/session"
	"github.com/Agent-Kwabbel/Horizen-sub001/internal/storage"
)

// AppVersion is set via ldflags at build time.
var AppVersion = "dev"

// App wires the profile storage and the cores on top of it for one
// command invocation.
type App struct {
	Storage *storage.Storage
	Session *session.Manager
	Secrets *secrets.Store
	Prefs   prefs.Store
	Log     *logger.Logger
}

// OpenApp opens (creating if needed) the profile database and constructs
// the session manager, secret store, and preference store over it.
func OpenApp(profile string) (*App, error) {
	log := logger.New()
	if level := os.Getenv("HORIZEN_LOG"); level != "" {
		if err := log.Init(level); err != nil {
			return nil, err
		}
	}

	st, err := storage.Open(profile)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(); err != nil {
		_ = st.Close()
		return nil, err
	}

	mgr := session.NewManager(st, keyring.Store{}, log.Log)
	return &App{
		Storage: st,
		Session: mgr,
		Secrets: secrets.New(st, mgr, log.Log),
		Prefs:   prefs.NewBoltStore(st),
		Log:     log,
	}, nil
}

// Close releases the profile database and flushes logs.
func (a *App) Close() {
	_ = a.Log.Log.Sync()
	if err := a.Storage.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close profile: %s\n", err)
	}
}

// DefaultProfile resolves the profile database path: HORIZEN_PROFILE or
// ~/.horizen.db.
func DefaultProfile() string {
	if p := os.Getenv("HORIZEN_PROFILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".horizen.db"
	}
	return filepath.Join(home, ".horizen.db")
}

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// GetPasswordFromEnv reads the password from HORIZEN_PASSWORD
func GetPasswordFromEnv() []byte {
	password := os.Getenv("HORIZEN_PASSWORD")
	if password == "" {
		return nil
	}
	// Return a copy to avoid issues when clearing the bytes
	result := make([]byte, len(password))
	copy(result, []byte(password))
	return result
}

// GetPassword retrieves the password from environment or prompts the user.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(prompt string) ([]byte, error) {
	if password := GetPasswordFromEnv(); password != nil {
		return password, nil
	}

	password, err := ReadPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// Unlock makes sure a key is available for the rest of the command,
// prompting for the password when protection is on.
func Unlock(app *App) {
	if app.Session.IsSessionUnlocked() {
		return
	}

	password := GetPasswordOrExit("Enter password: ")
	defer crypto.ClearBytes(password)

	ok, err := app.Session.UnlockWithPassword(password)
	if err != nil {
		HandleError(err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: wrong password")
		os.Exit(1)
	}
}

// Confirm asks for an explicit "yes" before destructive operations.
func Confirm(prompt string) bool {
	fmt.Printf("%s Type 'yes' to continue: ", prompt)
	var answer string
	_, _ = fmt.Scanln(&answer)
	return answer == "yes"
}

// HandleError prints an error and exits
func HandleError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}
