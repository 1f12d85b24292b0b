// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/guard"
)

// refreshMsg asks the model to re-read the guard snapshot.
type refreshMsg struct{}

// mountedMsg carries the result of Guard.Mount.
type mountedMsg struct {
	State guard.State
}

// loginResultMsg carries the result of Guard.Login.
type loginResultMsg struct {
	State guard.State
	Err   error
}

// storageChangeMsg is a credential change seen by the watcher.
type storageChangeMsg struct {
	Change credentials.Change
}

// logoutDoneMsg follows a user-initiated logout.
type logoutDoneMsg struct{}
