// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Session status and extension commands.
//
// Command: status [--json]
//   Validates the stored session with the server without changing it.
//
// Command: extend [--json]
//   Asks the server to push the session expiry forward.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/lendgate-tui/internal/audit"
	"github.com/jeranaias/lendgate-tui/internal/guard"
)

// =============================================================================
// STATUS
// =============================================================================

// HandleStatus handles "lendgate status".
func HandleStatus(args Args) error {
	return withRuntime(args, runStatus)
}

func runStatus(ctx context.Context, rt *Runtime, args Args) error {
	g := rt.NewGuard()
	defer g.Unmount()
	return writeStatus(rt, args, "status", collectStatus(ctx, rt, g))
}

// collectStatus validates the stored session and fills in the role check.
// It never clears credentials.
func collectStatus(ctx context.Context, rt *Runtime, g *guard.Guard) StatusData {
	data := StatusData{App: rt.App}
	if !rt.Store.IsAuthenticated() {
		return data
	}
	data.SignedIn = true

	res := rt.Validator.ValidateWithServer(ctx)
	data.Valid = res.Valid
	data.Reason = res.Reason

	user := res.User
	if user == nil || user.ID == "" {
		if stored, ok := rt.Store.GetUser(); ok {
			user = stored
		}
	}
	if user != nil {
		data.UserID = user.ID
		data.Email = user.Email
		data.Name = user.DisplayName()
		data.Role = user.Role
		data.Access = "denied"
		if g.Allowed(user.Role) {
			data.Access = "granted"
		}
	}
	if org := g.Snapshot().Organization; org != nil {
		data.Organization = org.Name
	}

	if res.Session != nil && !res.Session.ExpiresAt.IsZero() {
		data.ExpiresAt = res.Session.ExpiresAt.UTC().Format(time.RFC3339)
		remaining := rt.Validator.Remaining(res)
		data.RemainingSecs = int64(remaining / time.Second)
		data.Warning = res.Valid && remaining <= rt.Config.Session.WarningThreshold()
	}
	return data
}

func writeStatus(rt *Runtime, args Args, command string, data StatusData) error {
	if args.JSON {
		return NewJSONResponse(command, data).Write(rt.Out)
	}

	out := rt.Out
	if !data.SignedIn {
		fmt.Fprintln(out, DimStyle.Render("Not signed in. Run 'lendgate login' to sign in."))
		return nil
	}
	if args.Quiet {
		fmt.Fprintln(out, statusWord(data))
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render(rt.Title()+" session"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderLabel("Status")+RenderStatus(statusWord(data))+" "+ValueStyle.Render(statusWord(data)))
	if data.Name != "" {
		fmt.Fprintln(out, RenderLabel("User")+ValueStyle.Render(fmt.Sprintf("%s <%s>", data.Name, data.Email)))
	}
	if data.Role != "" {
		fmt.Fprintln(out, RenderLabel("Role")+ValueStyle.Render(fmt.Sprintf("%s (%s)", data.Role, data.Access)))
	}
	if data.Organization != "" {
		fmt.Fprintln(out, RenderLabel("Organization")+ValueStyle.Render(data.Organization))
	}
	if data.ExpiresAt != "" {
		remaining := time.Duration(data.RemainingSecs) * time.Second
		fmt.Fprintln(out, RenderLabel("Expires")+ValueStyle.Render(fmt.Sprintf("%s (in %s)", data.ExpiresAt, guard.FormatRemaining(remaining))))
	}
	if !data.Valid {
		fmt.Fprintln(out)
		if data.Reason != "" {
			fmt.Fprintln(out, ErrorStyle.Render("Session is no longer valid: "+data.Reason))
		}
		fmt.Fprintln(out, DimStyle.Render("Run 'lendgate login' to sign in again."))
	} else if data.Warning {
		fmt.Fprintln(out)
		fmt.Fprintln(out, WarningStyle.Render("Session expires soon. Run 'lendgate extend' to keep it alive."))
	}
	return nil
}

func statusWord(data StatusData) string {
	switch {
	case !data.SignedIn:
		return "signed-out"
	case !data.Valid:
		return "invalid"
	case data.Access == "denied":
		return "denied"
	case data.Warning:
		return "expiring"
	default:
		return "active"
	}
}

// =============================================================================
// EXTEND
// =============================================================================

// HandleExtend handles "lendgate extend".
func HandleExtend(args Args) error {
	return withRuntime(args, runExtend)
}

func runExtend(ctx context.Context, rt *Runtime, args Args) error {
	if !rt.Store.IsAuthenticated() {
		return errNotSignedIn
	}

	if !rt.Validator.ExtendSession(ctx) {
		return NewCommandError("extend", "extend session", "the server did not acknowledge the request", nil)
	}
	userID := ""
	if user, ok := rt.Store.GetUser(); ok {
		userID = user.ID
	}
	rt.record(audit.EventSessionExtended, userID, map[string]string{"trigger": "cli"})

	data := ExtendData{
		Acknowledged:  true,
		RemainingSecs: int64(rt.Validator.RemainingSessionTime(ctx) / time.Second),
	}
	if args.JSON {
		return NewJSONResponse("extend", data).Write(rt.Out)
	}
	if !args.Quiet {
		remaining := time.Duration(data.RemainingSecs) * time.Second
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Session extended.")+" "+
			DimStyle.Render("Expires in "+guard.FormatRemaining(remaining)))
	}
	return nil
}
