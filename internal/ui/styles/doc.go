// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides colors and styles for the lendgate shell.

All colors are Lip Gloss AdaptiveColor values. NewTheme pins the background
mode from the ui.theme setting ("dark", "light" or "auto") before any style
is built:

	theme := styles.NewTheme(cfg.UI.Theme)
	title := theme.HeaderTitle.Render("Admin Portal")

Status text always carries an ASCII marker ([OK], [X], [!], [i]) alongside
its color.
*/
package styles
