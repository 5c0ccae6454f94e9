package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("MAX_TOKENS", "")

	cfg := Load("")
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 500, cfg.MaxOutputTokens)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 120*time.Minute, cfg.SessionTTL)
	assert.ErrorIs(t, cfg.ValidateServer(), ErrMissingAPIKey)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport OPENAI_API_KEY=\"from-file\"\nOPENAI_MODEL=gpt-file\nbroken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("OPENAI_MODEL", "gpt-env")
	// registered so t.Setenv restores it after the file loader sets it
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	cfg := Load(path)
	assert.Equal(t, "from-file", cfg.OpenAIKey)
	assert.Equal(t, "gpt-env", cfg.Model)
	assert.NoError(t, cfg.ValidateServer())
}

func TestInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("MAX_TOKENS", "lots")
	assert.Equal(t, 500, Load("").MaxOutputTokens)
}

func TestParseIDs(t *testing.T) {
	assert.Nil(t, parseIDs("  "))
	assert.Equal(t, []int64{1, 42}, parseIDs("1, x, ,42"))
}

func TestValidateServerRejectsNonPositiveCap(t *testing.T) {
	cfg := Config{OpenAIKey: "k", MaxOutputTokens: 0}
	assert.Error(t, cfg.ValidateServer())
}
