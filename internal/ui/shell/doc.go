// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package shell is the Bubble Tea program that gates a console behind the
route guard.

Every terminal input is published to the guard's activity bus before the
active view sees it. The guard owns the session state; the model re-reads a
snapshot after every message and renders one of:

	Loading          spinner
	Unauthenticated  login form
	AccessDenied     role notice with sign-out
	Granted          console landing view
	Warning          landing view under the expiry overlay

A one-second tea.Tick drives the guard's countdown while in Warning.
Credential changes from other processes arrive through the watcher and are
forwarded to Guard.StorageChanged.
*/
package shell
