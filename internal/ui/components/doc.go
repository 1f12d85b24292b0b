// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the widgets used by the lendgate shell:
// the login form, the loading spinner, and the session expiry overlay.
package components
