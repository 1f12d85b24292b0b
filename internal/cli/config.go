// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for lendgate.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display the effective configuration as TOML
//   get <key>           Print one value
//   set <key> <value>   Set a value and save ~/.lendgate/config.toml
//   reset               Write the default configuration
//   path                Show the configuration file path
//   keys                List settable keys
//   apps                List consoles and their allowed roles
//
// Examples:
//   lendgate config set api.base_url https://api.example.com
//   lendgate config set session.warning_threshold_secs 120
//   lendgate config get app --json

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/lendgate-tui/internal/config"
)

// HandleConfig handles "lendgate config".
func HandleConfig(args Args) error {
	cfg, err := config.Load()
	if cfg == nil {
		return &ConfigError{Err: err}
	}
	if err != nil && !args.JSON {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: "+err.Error()))
	}
	return runConfig(cfg, os.Stdout, args)
}

func runConfig(cfg *config.Config, out io.Writer, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(cfg, out, args)
	case "get":
		return configGet(cfg, out, args)
	case "set":
		return configSet(cfg, out, args)
	case "reset":
		return configReset(out, args)
	case "path":
		return configPath(out, args)
	case "keys":
		return configKeys(out, args)
	case "apps":
		return configApps(cfg, out, args)
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown config subcommand", "lendgate config [show|get|set|reset|path|keys|apps]")
	}
}

func configShow(cfg *config.Config, out io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("config", cfg).Write(out)
	}
	if err := toml.NewEncoder(out).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func configGet(cfg *config.Config, out io.Writer, args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "lendgate config get api.base_url")
	}
	val, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return NewValidationErrorWithExample("key", args.ConfigKey, err.Error(), "lendgate config keys")
	}
	if args.JSON {
		return NewJSONResponse("config", ConfigData{Key: args.ConfigKey, Value: val}).Write(out)
	}
	fmt.Fprintln(out, val)
	return nil
}

func configSet(cfg *config.Config, out io.Writer, args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return ErrMissingArgument("key and value", "lendgate config set session.poll_interval_secs 60")
	}
	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return NewValidationErrorWithExample("key", args.ConfigKey, err.Error(), "lendgate config keys")
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.Save(cfg); err != nil {
		return &ConfigError{Err: err}
	}

	val, _ := cfg.Get(args.ConfigKey)
	if args.JSON {
		return NewJSONResponse("config", ConfigData{Key: args.ConfigKey, Value: val}).Write(out)
	}
	if !args.Quiet {
		fmt.Fprintf(out, "%s %s = %v\n", SuccessStyle.Render("Saved"), args.ConfigKey, val)
	}
	return nil
}

func configReset(out io.Writer, args Args) error {
	if err := config.Save(config.Default()); err != nil {
		return &ConfigError{Err: err}
	}
	path, _ := config.ConfigPathTOML()
	if args.JSON {
		return NewJSONResponse("config", ConfigData{Path: path}).Write(out)
	}
	fmt.Fprintln(out, SuccessStyle.Render("Configuration reset to defaults: ")+path)
	return nil
}

func configPath(out io.Writer, args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if args.JSON {
		return NewJSONResponse("config", ConfigData{Path: path}).Write(out)
	}
	fmt.Fprintln(out, path)
	return nil
}

func configKeys(out io.Writer, args Args) error {
	keys := config.GetAllKeys()
	if args.JSON {
		return NewJSONResponse("config", keys).Write(out)
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func configApps(cfg *config.Config, out io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("config", cfg.Apps).Write(out)
	}
	for _, name := range cfg.AppNames() {
		app, _ := cfg.LookupApp(name)
		marker := "  "
		if name == cfg.App {
			marker = "* "
		}
		fmt.Fprintln(out, marker+PadRight(name, 14)+PadRight(app.Title, 22)+
			DimStyle.Render(strings.Join(app.AllowedRoles, ", ")))
	}
	return nil
}
