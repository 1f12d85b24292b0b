// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and top-level command handlers for lendgate.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdExtend
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdStatus:
		return "status"
	case CmdExtend:
		return "extend"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	App     string // Console to open (admin, tenant, broker, underwriter)
	JSON    bool   // Output in JSON format
	Verbose bool
	Quiet   bool

	// Command-specific
	Email         string
	PasswordStdin bool
	Limit         int
	Subcommand    string
	ConfigKey     string
	ConfigVal     string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `lendgate - Terminal console for the lending platform admin apps

Usage:
  lendgate                          Open the console (default)
  lendgate tui                      Open the console
  lendgate login                    Sign in and store credentials
    --email EMAIL                   Email address (prompted if omitted)
    --password-stdin                Read the password from stdin
  lendgate logout                   Sign out and clear stored credentials
  lendgate status, s                Show the current session
  lendgate extend                   Ask the server to extend the session
  lendgate history                  Show recent session events
    --limit N                       Number of events (default: 20)
  lendgate config [subcommand]      Configuration
    show                            Print the effective configuration
    get KEY                         Print one value (dot notation)
    set KEY VALUE                   Update one value and save
    path                            Print the config file path
    keys                            List settable keys
    apps                            List consoles and their roles
  lendgate version                  Show version information
  lendgate help                     Show this help

Global flags:
  --app NAME                        Console to use (default: config "app")
  --json                            Machine-readable output
  -v, --verbose                     Debug logging
  -q, --quiet                       Suppress non-essential output

Environment:
  LENDGATE_HOME                     Config directory (default: ~/.lendgate)
  LENDGATE_API_URL                  Overrides api.base_url
  LENDGATE_APP                      Overrides app
  NO_COLOR                          Disable colors

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("lendgate version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given arguments (without the program name).
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui", "open":
		return CmdTUI, parsedArgs

	case "login", "signin":
		parseLoginArgs(&parsedArgs, remaining)
		return CmdLogin, parsedArgs

	case "logout", "signout":
		return CmdLogout, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "extend":
		return CmdExtend, parsedArgs

	case "history", "audit":
		parseHistoryArgs(&parsedArgs, remaining)
		return CmdHistory, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "--version", "-V":
		return CmdVersion, parsedArgs

	case "help", "--help", "-h":
		return CmdHelp, parsedArgs

	default:
		// Unknown command: show help rather than guessing.
		parsedArgs.Subcommand = cmd
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts flags valid for every command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--app":
			if i+1 < len(args) {
				i++
				parsedArgs.App = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--app=") {
				parsedArgs.App = strings.TrimPrefix(arg, "--app=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

func parseLoginArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Email = p.Flag("email")
	if args.Email == "" {
		args.Email = p.Flag("e")
	}
	if args.Email == "" {
		args.Email = p.Subcommand()
	}
	args.PasswordStdin = p.BoolFlag("password-stdin")
}

func parseHistoryArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Limit = p.FlagIntOrDefault("limit", p.FlagIntOrDefault("n", defaultHistoryLimit))
}

func parseConfigArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = JoinPositionalArgs(p, 2)
}

// HandleVersionWithJSON handles the "version" command with JSON output support.
func HandleVersionWithJSON(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		NewJSONResponse("version", data).Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp(args Args) error {
	PrintUsage()
	if args.Subcommand != "" {
		return NewValidationErrorWithExample("command", args.Subcommand, "unknown command", "lendgate help")
	}
	return nil
}
