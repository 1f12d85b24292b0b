// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign in and sign out from the command line.
//
// Command: login
//   lendgate login --email ops@example.com        Prompt for the password
//   echo "$PW" | lendgate login -e ops@x --password-stdin
//
// Command: logout
//   lendgate logout                               Clear stored credentials
//
// Login runs the same route guard as the console: the session is validated
// with the server and the role is checked against the console's allowed roles.

package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/audit"
	"github.com/jeranaias/lendgate-tui/internal/guard"
)

// =============================================================================
// LOGIN
// =============================================================================

// HandleLogin handles "lendgate login".
func HandleLogin(args Args) error {
	return withRuntime(args, runLogin)
}

func runLogin(ctx context.Context, rt *Runtime, args Args) error {
	g := rt.NewGuard()
	defer g.Unmount()

	if state := g.Mount(ctx); state != guard.StateUnauthenticated {
		if user, ok := rt.Store.GetUser(); ok {
			return fmt.Errorf("%w as %s; run 'lendgate logout' first", guard.ErrAlreadySignedIn, user.Email)
		}
		return guard.ErrAlreadySignedIn
	}

	email, password, err := readCredentials(rt, args)
	if err != nil {
		return err
	}

	state, err := g.Login(ctx, email, password)
	if errors.Is(err, guard.ErrMissingFields) {
		return ErrMissingArgument("email and password", "lendgate login --email ops@example.com")
	}
	if err != nil {
		return NewCommandError("login", "sign in", g.Snapshot().Notice, err)
	}

	snap := g.Snapshot()
	switch state {
	case guard.StateGranted, guard.StateWarning:
		return writeStatus(rt, args, "login", collectStatus(ctx, rt, g))
	case guard.StateAccessDenied:
		role := ""
		if snap.User != nil {
			role = snap.User.Role
		}
		return &PermissionError{App: rt.App, Role: role}
	default:
		return NewCommandError("login", "validate session", snap.Notice, nil)
	}
}

// readCredentials takes the email from --email or a prompt, and the
// password from stdin (--password-stdin) or a no-echo terminal prompt.
func readCredentials(rt *Runtime, args Args) (string, string, error) {
	email := args.Email
	if email == "" {
		if args.PasswordStdin {
			return "", "", ErrMissingArgument("email", "lendgate login --email ops@example.com --password-stdin")
		}
		if err := RequiresTTY("prompt for an email address"); err != nil {
			return "", "", err
		}
		line, err := promptLine(rt.Prompt, rt.In, "Email: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = line
	}

	if args.PasswordStdin {
		pw, err := promptLine(nil, rt.In, "")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return email, pw, nil
	}

	pw, err := promptPassword(rt.Prompt, "Password: ")
	if err != nil {
		return "", "", err
	}
	return email, pw, nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// HandleLogout handles "lendgate logout".
func HandleLogout(args Args) error {
	return withRuntime(args, runLogout)
}

func runLogout(ctx context.Context, rt *Runtime, args Args) error {
	data := LogoutData{WasSignedIn: rt.Store.IsAuthenticated()}

	if data.WasSignedIn {
		userID := ""
		if user, ok := rt.Store.GetUser(); ok {
			userID = user.ID
		}

		// Local credentials are cleared even when the server call fails.
		if err := rt.Client.Logout(ctx); err != nil {
			rt.Logger.Warn("server logout failed", zap.Error(err))
		} else {
			data.ServerLogout = true
		}
		if err := rt.Store.RemoveToken(); err != nil {
			return NewCommandError("logout", "clear credentials", "could not remove stored credentials", err)
		}
		rt.record(audit.EventLogout, userID, map[string]string{"trigger": "cli"})
	}

	if args.JSON {
		return NewJSONResponse("logout", data).Write(rt.Out)
	}
	if args.Quiet {
		return nil
	}
	if !data.WasSignedIn {
		fmt.Fprintln(rt.Out, DimStyle.Render("Not signed in."))
		return nil
	}
	fmt.Fprintln(rt.Out, SuccessStyle.Render("Signed out."))
	if !data.ServerLogout {
		fmt.Fprintln(rt.Out, WarningStyle.Render("The server could not be reached; the server session may stay open until it expires."))
	}
	return nil
}
