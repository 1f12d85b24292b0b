// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Recent session events from the local audit trail.
//
// Command: history [--limit N] [--json]

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lendgate-tui/internal/audit"
)

const defaultHistoryLimit = 20

// Column widths for the history table.
const (
	colTime = 20
	colType = 22
	colApp  = 13
	colUser = 14
)

// HandleHistory handles "lendgate history".
func HandleHistory(args Args) error {
	return withRuntime(args, runHistory)
}

func runHistory(ctx context.Context, rt *Runtime, args Args) error {
	st := rt.Audit()
	if st == nil {
		return NewCommandError("history", "read", "the audit trail is disabled (audit.enabled = false)", nil)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := st.Recent(limit)
	if err != nil {
		return NewCommandError("history", "read", "could not query the audit trail", err)
	}

	if args.JSON {
		if events == nil {
			events = []audit.Event{}
		}
		return NewJSONResponse("history", HistoryData{Events: events, Count: len(events)}).Write(rt.Out)
	}

	out := rt.Out
	if len(events) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No session events recorded."))
		return nil
	}

	header := PadRight("TIME", colTime) + PadRight("EVENT", colType) +
		PadRight("APP", colApp) + PadRight("USER", colUser) + "DETAILS"
	fmt.Fprintln(out, TitleStyle.Render(header))
	fmt.Fprintln(out, RenderSeparator(min(GetTerminalWidth(), colTime+colType+colApp+colUser+24)))

	for _, e := range events {
		line := PadRight(e.Time.Local().Format("2006-01-02 15:04:05"), colTime) +
			eventStyle(e.Type).Render(PadRight(string(e.Type), colType)) +
			PadRight(e.App, colApp) +
			PadRight(e.UserID, colUser) +
			DimStyle.Render(formatDetails(e.Details))
		fmt.Fprintln(out, line)
	}
	return nil
}

func eventStyle(t audit.EventType) lipgloss.Style {
	switch t {
	case audit.EventLoginFailed, audit.EventAccessDenied, audit.EventSessionExpired, audit.EventCrossProcessLogout:
		return ErrorStyle
	case audit.EventSessionWarning:
		return WarningStyle
	case audit.EventLogin, audit.EventSessionExtended:
		return SuccessStyle
	default:
		return ValueStyle
	}
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, " ")
}
