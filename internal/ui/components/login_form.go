// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lendgate-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// LoginSubmitMsg is emitted when the user submits the form.
type LoginSubmitMsg struct {
	Email    string
	Password string
}

const (
	fieldEmail = iota
	fieldPassword
)

// LoginForm collects an email and password.
type LoginForm struct {
	title    string
	email    textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	notice   string
	err      string
	width    int
}

// NewLoginForm creates a form with the email field focused.
func NewLoginForm(title string) LoginForm {
	email := newField("email@company.com")
	email.CharLimit = 254
	email.Focus()

	password := newField("password")
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 256

	return LoginForm{
		title:    title,
		email:    email,
		password: password,
		width:    60,
	}
}

func newField(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.Width = 40
	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Indigo).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(styles.Indigo)
	return ti
}

// SetWidth sets the form width.
func (f *LoginForm) SetWidth(width int) {
	f.width = width
	inputWidth := width - 16
	if inputWidth < 20 {
		inputWidth = 20
	}
	if inputWidth > 50 {
		inputWidth = 50
	}
	f.email.Width = inputWidth
	f.password.Width = inputWidth
}

// SetBusy disables input while a login request is in flight.
func (f *LoginForm) SetBusy(busy bool) {
	f.busy = busy
}

// Busy reports whether a login request is in flight.
func (f *LoginForm) Busy() bool {
	return f.busy
}

// SetNotice sets the informational line shown above the fields.
func (f *LoginForm) SetNotice(notice string) {
	f.notice = notice
}

// SetError sets the error line shown below the fields.
func (f *LoginForm) SetError(err string) {
	f.err = err
}

// Email returns the entered email.
func (f *LoginForm) Email() string {
	return f.email.Value()
}

// ResetPassword clears the password and focuses it.
func (f *LoginForm) ResetPassword() tea.Cmd {
	f.password.Reset()
	return f.focusField(fieldPassword)
}

// Reset clears both fields and focuses the email field.
func (f *LoginForm) Reset() tea.Cmd {
	f.email.Reset()
	f.password.Reset()
	f.err = ""
	f.busy = false
	return f.focusField(fieldEmail)
}

func (f *LoginForm) focusField(field int) tea.Cmd {
	f.focus = field
	if field == fieldEmail {
		f.password.Blur()
		return f.email.Focus()
	}
	f.email.Blur()
	return f.password.Focus()
}

// Update handles key input. Enter on the email field moves to the password;
// enter on the password submits.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if f.busy {
		return f, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			return f, f.focusField(1 - f.focus)

		case tea.KeyEnter:
			if f.focus == fieldEmail {
				return f, f.focusField(fieldPassword)
			}
			email := strings.TrimSpace(f.email.Value())
			password := f.password.Value()
			if email == "" || password == "" {
				f.err = "Email and password are required."
				return f, nil
			}
			f.err = ""
			return f, func() tea.Msg {
				return LoginSubmitMsg{Email: email, Password: password}
			}
		}
	}

	var cmd tea.Cmd
	if f.focus == fieldEmail {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return f, cmd
}

// View renders the form.
func (f LoginForm) View() string {
	var parts []string

	title := lipgloss.NewStyle().Foreground(styles.Indigo).Bold(true)
	parts = append(parts, title.Render(f.title), "")

	if f.notice != "" {
		parts = append(parts, styles.RenderInfo(f.notice), "")
	}

	label := lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(10)
	parts = append(parts,
		label.Render("Email")+f.email.View(),
		label.Render("Password")+f.password.View(),
	)

	if f.err != "" {
		parts = append(parts, "", styles.RenderError(f.err))
	}

	hint := lipgloss.NewStyle().Foreground(styles.TextMuted)
	if f.busy {
		parts = append(parts, "", hint.Render("Signing in..."))
	} else {
		parts = append(parts, "", hint.Render("tab switch field  enter sign in  ctrl+c quit"))
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(1, 3).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
