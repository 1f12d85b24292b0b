// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/guard"
	"github.com/jeranaias/lendgate-tui/internal/session"
	"github.com/jeranaias/lendgate-tui/internal/ui/components"
	"github.com/jeranaias/lendgate-tui/internal/ui/styles"
)

// Options configures the shell.
type Options struct {
	// Title is the console name shown in the header and login form.
	Title string
	// App is the configured app key (admin, tenant, ...).
	App string
	// Theme is "dark", "light" or "auto".
	Theme string
	// PollInterval is shown on the landing view.
	PollInterval time.Duration
	// Changes delivers credential changes from other processes. May be nil.
	Changes <-chan credentials.Change
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the shell.
type Model struct {
	ctx   context.Context
	guard *guard.Guard
	opts  Options
	theme *styles.Theme

	snap    guard.Snapshot
	login   components.LoginForm
	overlay components.SessionOverlay
	spinner components.Spinner
	ticking bool

	width  int
	height int
}

// New creates the shell model. The guard should not be mounted yet; Init
// mounts it.
func New(ctx context.Context, g *guard.Guard, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Lendgate"
	}
	m := Model{
		ctx:     ctx,
		guard:   g,
		opts:    opts,
		theme:   styles.NewTheme(opts.Theme),
		snap:    g.Snapshot(),
		login:   components.NewLoginForm(opts.Title),
		overlay: components.NewSessionOverlay(),
		spinner: components.NewSpinner("Checking session"),
	}
	m.spinner.Start()
	return m
}

// Init mounts the guard and starts listening for credential changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick(), m.mountCmd(), m.waitForChange())
}

// Snapshot returns the guard state the model last rendered.
func (m Model) Snapshot() guard.Snapshot {
	return m.snap
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Input reaches the activity bus before any view can consume it.
	prev := m.snap.State
	m.publishActivity(msg)

	var cmds []tea.Cmd
	forward := false

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.overlay.SetSize(msg.Width, msg.Height)
		m.login.SetWidth(msg.Width)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		// A key pressed under the overlay only keeps the session alive.
		if prev == guard.StateWarning {
			break
		}
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		forward = true

	case components.LoginSubmitMsg:
		m.login.SetBusy(true)
		m.login.SetError("")
		cmds = append(cmds, m.spinner.Start(), m.loginCmd(msg.Email, msg.Password))

	case loginResultMsg:
		m.login.SetBusy(false)
		if msg.Err != nil {
			m.snap = m.guard.Snapshot()
			m.login.SetNotice("")
			m.login.SetError(m.snap.Notice)
			cmds = append(cmds, m.login.ResetPassword())
		}

	case mountedMsg, refreshMsg, logoutDoneMsg:
		// sync below

	case session.TickMsg:
		if m.snap.State == guard.StateWarning {
			cmds = append(cmds, m.tickCmd())
		} else {
			m.ticking = false
		}

	case session.CountdownMsg:
		m.ticking = false

	case storageChangeMsg:
		cmds = append(cmds, m.storageChangedCmd(), m.waitForChange())

	default:
		// Cursor blinks and other component messages.
		forward = true
	}

	if forward && m.snap.State == guard.StateUnauthenticated {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.snap.State {
	case guard.StateAccessDenied:
		switch msg.String() {
		case "x":
			return m.logoutCmd()
		case "q":
			return tea.Quit
		}

	case guard.StateGranted:
		switch msg.String() {
		case "x":
			return m.logoutCmd()
		case "r":
			return m.mountCmd()
		case "q":
			return tea.Quit
		}
	}
	return nil
}

// publishActivity maps terminal input onto the activity bus.
func (m *Model) publishActivity(msg tea.Msg) {
	var kind session.ActivityKind
	switch msg := msg.(type) {
	case tea.KeyMsg:
		kind = session.ActivityKey
		if msg.Type == tea.KeyRunes && len(msg.Runes) > 1 {
			kind = session.ActivityTouch
		}
	case tea.MouseMsg:
		kind = session.ActivityPointer
		if msg.Type == tea.MouseWheelUp || msg.Type == tea.MouseWheelDown {
			kind = session.ActivityScroll
		}
	case tea.WindowSizeMsg:
		kind = session.ActivityScroll
	default:
		return
	}
	m.guard.Bus().Publish(session.Activity{Kind: kind, At: time.Now()})
}

// sync re-reads the guard and reconciles view state with it.
func (m *Model) sync() tea.Cmd {
	prev := m.snap.State
	m.snap = m.guard.Snapshot()
	state := m.snap.State

	var cmds []tea.Cmd

	if state == guard.StateUnauthenticated && prev != guard.StateUnauthenticated {
		cmds = append(cmds, m.login.Reset())
		m.login.SetNotice(m.snap.Notice)
	}

	if state == guard.StateWarning {
		m.overlay.Show(m.snap.Remaining)
		if !m.ticking {
			m.ticking = true
			cmds = append(cmds, session.TickCmd())
		}
	} else {
		m.overlay.Hide()
	}

	if state == guard.StateLoading || m.login.Busy() {
		cmds = append(cmds, m.spinner.Start())
	} else {
		m.spinner.Stop()
	}

	return tea.Batch(cmds...)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) mountCmd() tea.Cmd {
	g, ctx := m.guard, m.ctx
	return func() tea.Msg {
		return mountedMsg{State: g.Mount(ctx)}
	}
}

func (m Model) loginCmd(email, password string) tea.Cmd {
	g, ctx := m.guard, m.ctx
	return func() tea.Msg {
		state, err := g.Login(ctx, email, password)
		return loginResultMsg{State: state, Err: err}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	g, ctx := m.guard, m.ctx
	return func() tea.Msg {
		g.Logout(ctx)
		return logoutDoneMsg{}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return session.CountdownCmd(m.guard.Tick)
}

func (m Model) storageChangedCmd() tea.Cmd {
	g := m.guard
	return func() tea.Msg {
		g.StorageChanged()
		return refreshMsg{}
	}
}

func (m Model) waitForChange() tea.Cmd {
	changes, ctx := m.opts.Changes, m.ctx
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case c := <-changes:
			return storageChangeMsg{Change: c}
		case <-ctx.Done():
			return nil
		}
	}
}
