// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lendgate-tui/internal/guard"
	"github.com/jeranaias/lendgate-tui/internal/ui/styles"
)

// =============================================================================
// SESSION EXPIRY OVERLAY
// =============================================================================

// SessionOverlay is the modal shown while the guard is in its warning state.
// It only renders; the countdown itself belongs to the guard.
type SessionOverlay struct {
	visible       bool
	timeRemaining time.Duration

	width  int
	height int
}

// NewSessionOverlay creates a hidden overlay.
func NewSessionOverlay() SessionOverlay {
	return SessionOverlay{}
}

// SetSize sets the overlay dimensions.
func (o *SessionOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with the given time remaining.
func (o *SessionOverlay) Show(remaining time.Duration) {
	o.visible = true
	o.timeRemaining = remaining
}

// Hide hides the overlay.
func (o *SessionOverlay) Hide() {
	o.visible = false
}

// IsVisible returns whether the overlay is currently visible.
func (o *SessionOverlay) IsVisible() bool {
	return o.visible
}

// TimeRemaining returns the displayed time remaining.
func (o *SessionOverlay) TimeRemaining() time.Duration {
	return o.timeRemaining
}

// View renders the modal centered over a dimmed backdrop.
func (o SessionOverlay) View() string {
	if !o.visible {
		return ""
	}

	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}

	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	var parts []string

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	parts = append(parts, titleStyle.Render(styles.StatusIndicators.Warning+" Session Expiring"))
	parts = append(parts, "")

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 4).
		Align(lipgloss.Center)
	parts = append(parts, msgStyle.Render(
		"You will be signed out in "+timeStyle.Render(guard.FormatRemaining(o.timeRemaining))))
	parts = append(parts, "")

	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true).
		Align(lipgloss.Center)
	parts = append(parts, hintStyle.Render("Press any key or move the mouse to stay signed in"))

	content := lipgloss.JoinVertical(lipgloss.Center, parts...)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}
