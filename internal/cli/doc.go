// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive commands
// for lendgate.
//
// # Key Types
//
//   - Command: the commands main dispatches on
//   - Args: global and command-specific flags
//   - Runtime: config, logger, credential store, API client, validator and
//     audit recorder for one invocation
//   - JSONResponse: the envelope every --json command prints
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdLogin:
//	    err = cli.HandleLogin(args)
//	case cli.CmdStatus:
//	    err = cli.HandleStatus(args)
//	// ...
//	}
//	if err != nil {
//	    cli.DisplayError(err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Exit Codes
//
//	0  success
//	1  general error
//	2  usage error
//	3  configuration error
//	4  not signed in, rejected credentials or access denied
//	5  API unreachable
package cli
