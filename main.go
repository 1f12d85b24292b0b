// lendgate - Session gate for the lending platform's administrative consoles.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/cli"
	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/ui/shell"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdLogin:
		err = cli.HandleLogin(args)
	case cli.CmdLogout:
		err = cli.HandleLogout(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdExtend:
		err = cli.HandleExtend(args)
	case cli.CmdHistory:
		err = cli.HandleHistory(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersionWithJSON(args)
	case cli.CmdHelp:
		err = cli.HandleHelp(args)
	default:
		err = runTUI(args)
	}

	if err != nil {
		cli.DisplayError(err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// runTUI opens the interactive console behind the route guard.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("lendgate"); err != nil {
		return err
	}

	rt, err := cli.NewRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := rt.Config
	opts := shell.Options{
		Title:        rt.Title(),
		App:          rt.App,
		Theme:        cfg.UI.Theme,
		PollInterval: cfg.Session.PollInterval(),
	}

	// Sign-ins and sign-outs from other lendgate processes.
	if cfg.Session.WatchStorage {
		w, err := credentials.NewWatcher(rt.CredentialDir, 0)
		if err != nil {
			rt.Logger.Warn("credential watcher unavailable", zap.Error(err))
		} else {
			w.WithLogger(rt.Logger)
			if err := w.Watch(); err != nil {
				rt.Logger.Warn("credential watcher unavailable", zap.Error(err))
			} else {
				opts.Changes = w.Events()
			}
			defer w.Close()
		}
	}

	g := rt.NewGuard()
	return shell.Run(ctx, g, opts, cfg.UI.Mouse)
}
