package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := "Skills:\n• Python\n•\n• Go\n\n\n\nDone"
	assert.Equal(t, "Skills:\n- Python\n\n- Go\n\nDone", Normalize(in))
}

func TestHTML(t *testing.T) {
	out, err := HTML("**bold** and a [link](https://example.com)")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestTerminalKeepsText(t *testing.T) {
	for _, theme := range []Theme{ThemeDark, ThemeLight} {
		out := Terminal("# Hello\n\n• one\n• two", DefaultOptions().WithTheme(theme).WithWidth(40))
		assert.Contains(t, out, "Hello")
		assert.Contains(t, out, "one")
		assert.False(t, strings.HasSuffix(out, "\n"))
	}
}

func TestThemeToggle(t *testing.T) {
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
	assert.Equal(t, ThemeLight, ParseTheme(" Light "))
	assert.Equal(t, ThemeDark, ParseTheme("solarized"))
}
