// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickInterval is the step of the local warning countdown.
const TickInterval = time.Second

// TickMsg is sent once per TickInterval while a warning countdown runs.
type TickMsg struct {
	Time time.Time
}

// CountdownMsg reports the countdown after a tick. Warning is false once the
// countdown has expired or the warning was dismissed.
type CountdownMsg struct {
	Warning bool
}

// TickCmd returns a command that delivers one TickMsg after TickInterval.
// Callers re-issue it to keep the countdown going.
func TickCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// CountdownCmd runs tick off the UI goroutine and reports the result.
func CountdownCmd(tick func() bool) tea.Cmd {
	return func() tea.Msg {
		return CountdownMsg{Warning: tick()}
	}
}
