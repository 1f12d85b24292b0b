// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lendgate-tui/internal/guard"
)

// Run starts the shell and blocks until the user quits or ctx is cancelled.
// The guard is unmounted on return.
func Run(ctx context.Context, g *guard.Guard, opts Options, mouse bool) error {
	m := New(ctx, g, opts)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if mouse {
		progOpts = append(progOpts, tea.WithMouseAllMotion())
	}
	p := tea.NewProgram(m, progOpts...)

	// Guard transitions happen on monitor and extender goroutines. Send
	// blocks until the program reads it, so never call it inline.
	unsubscribe := g.Subscribe(func(guard.Snapshot) {
		go p.Send(refreshMsg{})
	})
	defer unsubscribe()
	defer g.Unmount()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
