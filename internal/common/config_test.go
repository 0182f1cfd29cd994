package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "SUPPORT", cfg.Jira.ProjectKey)
	assert.Equal(t, "http://localhost:8080/auth/callback", cfg.Jira.RedirectURI)
	assert.Equal(t, LLMProviderGemini, cfg.LLM.DefaultProvider)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tessera.toml")
	content := `
environment = "production"

[server]
port = 9090

[jira]
base_url = "https://yourcompany.atlassian.net"
project_key = "OPS"

[llm]
default_provider = "claude"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host) // default preserved
	assert.Equal(t, "OPS", cfg.Jira.ProjectKey)
	assert.Equal(t, "https://yourcompany.atlassian.net", cfg.Jira.BaseURL)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.DefaultProvider)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromFileRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tessera.toml")
	content := `
[server]
port = -1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TESSERA_SERVER_PORT", "7070")
	t.Setenv("TESSERA_JIRA_PROJECT_KEY", "HELP")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token-from-env")
	t.Setenv("TESSERA_LLM_DEFAULT_PROVIDER", "claude")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "HELP", cfg.Jira.ProjectKey)
	assert.Equal(t, "token-from-env", cfg.Telegram.BotToken)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.DefaultProvider)
}

func TestEnvOverridePrefersTesseraPrefix(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "plain-token")
	t.Setenv("TESSERA_TELEGRAM_BOT_TOKEN", "prefixed-token")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, "prefixed-token", cfg.Telegram.BotToken)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 6060, "0.0.0.0")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
