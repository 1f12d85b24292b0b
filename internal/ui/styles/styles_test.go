// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitBackground(t *testing.T) {
	assert.True(t, NewTheme(ThemeDark).IsDark)
	assert.False(t, NewTheme(ThemeLight).IsDark)
	assert.False(t, NewTheme("LIGHT").IsDark)
}

func TestTheme_LayoutMode(t *testing.T) {
	theme := NewTheme(ThemeDark)

	theme.SetSize(40, 20)
	assert.Equal(t, LayoutNarrow, theme.GetLayoutMode())

	theme.SetSize(120, 40)
	assert.Equal(t, LayoutWide, theme.GetLayoutMode())
}

func TestRenderHelpersIncludeIndicators(t *testing.T) {
	tests := []struct {
		render    func(string) string
		indicator string
	}{
		{RenderSuccess, StatusIndicators.Success},
		{RenderError, StatusIndicators.Error},
		{RenderWarning, StatusIndicators.Warning},
		{RenderInfo, StatusIndicators.Info},
	}

	for _, tt := range tests {
		out := tt.render("session")
		assert.True(t, strings.Contains(out, tt.indicator), out)
		assert.Contains(t, out, "session")
	}
}
