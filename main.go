package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Agent-Kwabbel/Horizen-sub001/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "passwd":
		runPasswd(os.Args[2:])
	case "disable":
		runDisable(os.Args[2:])
	case "forget":
		runForget(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "timeout":
		runTimeout(os.Args[2:])
	case "keys":
		runKeys(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "completion":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: horizen completion <bash|zsh|fish>")
			os.Exit(1)
		}
		cmd.Completion(os.Args[2])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func openApp(fs *flag.FlagSet, args []string) *cmd.App {
	profile := fs.String("profile", cmd.DefaultProfile(), "profile database path")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	app, err := cmd.OpenApp(*profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return app
}

func runSetup(args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	app := openApp(fs, args)
	defer app.Close()
	cmd.Setup(app)
}

func runPasswd(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	app := openApp(fs, args)
	defer app.Close()
	cmd.Passwd(app)
}

func runDisable(args []string) {
	fs := flag.NewFlagSet("disable", flag.ExitOnError)
	app := openApp(fs, args)
	defer app.Close()
	cmd.Disable(app)
}

func runForget(args []string) {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	app := openApp(fs, args)
	defer app.Close()
	cmd.Forget(app)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	app := openApp(fs, args)
	defer app.Close()
	cmd.Status(app)
}

func runTimeout(args []string) {
	fs := flag.NewFlagSet("timeout", flag.ExitOnError)
	rest, minutes := splitTrailingInt(args, "Usage: horizen timeout <minutes>")
	app := openApp(fs, rest)
	defer app.Close()
	cmd.Timeout(app, minutes)
}

func runKeys(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: horizen keys <set|rm|ls> [provider]")
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("keys", flag.ExitOnError)

	switch sub {
	case "set", "rm":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: horizen keys %s <provider>\n", sub)
			os.Exit(1)
		}
		provider := args[1]
		app := openApp(fs, args[2:])
		defer app.Close()
		if sub == "set" {
			cmd.KeysSet(app, provider)
		} else {
			cmd.KeysRemove(app, provider)
		}
	case "ls":
		app := openApp(fs, args[1:])
		defer app.Close()
		cmd.KeysList(app)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keys subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "horizen-backup.json", "output file")
	sections := fs.String("sections", "", "comma-separated sections (settings,chats,widgets,apiKeys)")
	encrypt := fs.Bool("encrypt", false, "encrypt all selected sections with a password")
	app := openApp(fs, args)
	defer app.Close()

	cmd.Export(app, cmd.ExportOptions{
		Output:   *output,
		Sections: splitSections(*sections),
		Encrypt:  *encrypt,
	})
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	sections := fs.String("sections", "", "comma-separated sections to apply")
	chats := fs.String("chats", "append", "chat strategy: append or replace")
	links := fs.String("links", "merge", "quick-link strategy: merge or replace")
	widgets := fs.String("widgets", "merge", "widget strategy: merge or replace")
	backupFile := fs.String("backup", "", "write a pre-import snapshot to this file")
	force := fs.Bool("force", false, "proceed even if the integrity check fails")

	// The file argument comes first, flags after it.
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(os.Stderr, "Usage: horizen import <file> [flags]")
		os.Exit(1)
	}
	file := args[0]
	app := openApp(fs, args[1:])
	defer app.Close()

	cmd.Import(app, cmd.ImportOptions{
		File:       file,
		Sections:   splitSections(*sections),
		Chats:      *chats,
		QuickLinks: *links,
		Widgets:    *widgets,
		BackupFile: *backupFile,
		Force:      *force,
	})
}

func splitSections(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func splitTrailingInt(args []string, usage string) ([]string, int) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	n, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	return args[:len(args)-1], n
}

func printUsage() {
	fmt.Println(`horizen - start-page profile, credentials, and backups

Usage: horizen <command> [flags]

Commands:
  setup            Enable password protection for stored API keys
  passwd           Change the protection password
  disable          Disable protection (credentials move to the OS keyring)
  forget           Forgot password: delete stored API keys and reset
  status           Show protection state
  timeout <min>    Set the session idle timeout
  keys set <p>     Store an API key for a provider
  keys rm <p>      Remove a provider's API key
  keys ls          List providers with stored keys
  export           Write a backup document (-o, -sections, -encrypt)
  import <file>    Apply a backup document (-chats, -links, -widgets, ...)
  completion       Output shell completion (bash, zsh, fish)

Flags common to all commands:
  -profile <path>  Profile database (default ~/.horizen.db)

Environment:
  HORIZEN_PASSWORD  Password (instead of prompting)
  HORIZEN_PROFILE   Profile database path
  HORIZEN_LOG       Log level (debug, info, warn, error)`)
}
