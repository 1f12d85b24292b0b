// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lendgate-tui/internal/guard"
	"github.com/jeranaias/lendgate-tui/internal/ui/styles"
)

// Default dimensions before the first WindowSizeMsg.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the shell.
func (m Model) View() string {
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	width, height := m.size()
	header := m.renderHeader(width)
	status := m.renderStatusBar(width)

	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(status)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderBody())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m Model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m Model) renderBody() string {
	switch m.snap.State {
	case guard.StateUnauthenticated:
		return m.login.View()
	case guard.StateAccessDenied:
		return m.renderDenied()
	case guard.StateGranted:
		return m.renderLanding()
	default:
		return m.spinner.View()
	}
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader(width int) string {
	t := m.theme
	left := t.HeaderTitle.Render(m.opts.Title)
	if m.opts.App != "" {
		left += " " + t.HeaderSubtitle.Render(m.opts.App)
	}

	right := ""
	if u := m.snap.User; u != nil && m.snap.State != guard.StateUnauthenticated {
		right = t.HeaderSubtitle.Render(u.DisplayName() + " (" + u.Role + ")")
	}

	inner := width - t.Header.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return t.Header.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// BODY
// =============================================================================

func (m Model) renderDenied() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.BadgeDenied.Render(styles.StatusIndicators.Error + " Access Denied"))
	b.WriteString("\n\n")
	if m.snap.Notice != "" {
		b.WriteString(t.Notice.Render(m.snap.Notice))
		b.WriteString("\n")
	}
	b.WriteString(t.Muted.Render("Sign out and use an account with access to this console."))
	return t.Card.BorderForeground(styles.Rose).Render(b.String())
}

func (m Model) renderLanding() string {
	t := m.theme
	row := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return t.Label.Render(label) + t.Value.Render(value)
	}

	rows := []string{
		t.BadgeActive.Render(styles.StatusIndicators.Success + " Session Active"),
		"",
	}
	if u := m.snap.User; u != nil {
		rows = append(rows,
			row("User", u.DisplayName()),
			row("Email", u.Email),
			row("Role", u.Role),
		)
	}
	org := ""
	if o := m.snap.Organization; o != nil {
		org = o.Name
	}
	rows = append(rows, row("Organization", org), row("Console", m.opts.App))

	if m.opts.PollInterval > 0 {
		rows = append(rows, "", t.Muted.Render("Session checked every "+m.opts.PollInterval.String()))
	}
	if m.snap.Notice != "" {
		rows = append(rows, t.Notice.Render(m.snap.Notice))
	}
	return t.Card.Render(strings.Join(rows, "\n"))
}

// =============================================================================
// STATUS BAR
// =============================================================================

type shortcut struct {
	key  string
	desc string
}

func (m Model) shortcuts() []shortcut {
	switch m.snap.State {
	case guard.StateUnauthenticated:
		return []shortcut{{"tab", "next field"}, {"enter", "sign in"}, {"ctrl+c", "quit"}}
	case guard.StateAccessDenied:
		return []shortcut{{"x", "sign out"}, {"q", "quit"}}
	case guard.StateGranted:
		return []shortcut{{"r", "recheck"}, {"x", "sign out"}, {"q", "quit"}}
	default:
		return []shortcut{{"ctrl+c", "quit"}}
	}
}

func (m Model) badge() string {
	t := m.theme
	switch m.snap.State {
	case guard.StateGranted:
		return t.BadgeActive.Render("ACTIVE")
	case guard.StateWarning:
		return t.BadgeWarning.Render("EXPIRING")
	case guard.StateAccessDenied:
		return t.BadgeDenied.Render("DENIED")
	case guard.StateUnauthenticated:
		return t.Muted.Render("SIGNED OUT")
	default:
		return t.Muted.Render("CHECKING")
	}
}

func (m Model) renderStatusBar(width int) string {
	t := m.theme
	parts := make([]string, 0, 4)
	for _, s := range m.shortcuts() {
		parts = append(parts, t.ShortcutKey.Render(s.key)+" "+t.ShortcutDesc.Render(s.desc))
	}
	left := strings.Join(parts, "  ")
	right := m.badge()

	inner := width - t.StatusBar.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return t.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
