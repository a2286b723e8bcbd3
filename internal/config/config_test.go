package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TRIAGE_CONFIG", "PORT", "BEDROCK_AGENT_ID", "BEDROCK_AGENT_ALIAS_ID", "MODEL_PROVIDER",
	"BEDROCK_MODEL_ID", "AWS_REGION", "MODEL_MAX_TOKENS", "MODEL_TIMEOUT_SECONDS",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
	"DB_PASSWORD", "DB_SSLMODE", "DB_IAM_AUTH", "DB_REGION", "AUDIT_DB_PATH", "LOG_LEVEL",
	"LOG_DEVELOPMENT",
}

// clearEnv blanks every key Load reads. Empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.UsesAgent())
	assert.False(t, cfg.Database.Configured())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
model:
  provider: claude
  anthropic_api_key: from-file
  max_tokens: 2048
database:
  host: db.internal
  port: 6432
  iam_auth: true
audit:
  path: /tmp/audit.db
logging:
  level: debug
`)
	t.Setenv("PORT", "7070")
	t.Setenv("DB_USER", "triagemaster")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "claude", cfg.Model.Provider)
	assert.Equal(t, "from-file", cfg.APIKey())
	assert.Equal(t, 2048, cfg.Model.MaxTokens)
	assert.Equal(t, "us-east-1", cfg.Model.Region)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, "triagemaster", cfg.Database.User)
	assert.True(t, cfg.Database.IAMAuth)
	assert.Equal(t, "/tmp/audit.db", cfg.Audit.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIAGE_CONFIG", writeConfig(t, "agent:\n  id: AGENT1\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.UsesAgent())
	assert.Equal(t, "TSTALIASID", cfg.Agent.AliasID)
}

func TestLoad_AgentFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEDROCK_AGENT_ID", "AGENT2")
	t.Setenv("BEDROCK_AGENT_ALIAS_ID", "LIVE")
	// Model settings are not checked when the agent path is selected.
	t.Setenv("MODEL_PROVIDER", "gemini")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "AGENT2", cfg.Agent.ID)
	assert.Equal(t, "LIVE", cfg.Agent.AliasID)
}

func TestModelName_PerProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "k")
	t.Setenv("ANTHROPIC_MODEL", "claude-opus-4-1")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", cfg.ModelName())

	cfg.Model.Provider = "gemini"
	assert.Equal(t, "gemini-2.5-pro", cfg.ModelName())

	cfg.Model.Provider = "bedrock"
	assert.Equal(t, Default().Model.ModelID, cfg.ModelName())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "claude without key", env: map[string]string{"MODEL_PROVIDER": "anthropic"}},
		{name: "gemini without key", env: map[string]string{"MODEL_PROVIDER": "gemini"}},
		{name: "unknown provider", env: map[string]string{"MODEL_PROVIDER": "openai"}},
		{name: "bad max tokens", file: "model:\n  max_tokens: -1\n"},
		{name: "bad db port", env: map[string]string{"DB_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "model: [unclosed"))
	assert.Error(t, err)
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	t.Setenv("CFG_TEST_BAD_INT", "forty")
	t.Setenv("CFG_TEST_BOOL", "Yes")
	t.Setenv("CFG_TEST_STR", "")

	assert.Equal(t, 42, GetInt("CFG_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("CFG_TEST_BAD_INT", 1))
	assert.True(t, GetBool("CFG_TEST_BOOL", false))
	assert.True(t, GetBool("CFG_TEST_UNSET_BOOL", true))
	assert.Equal(t, "fallback", Get("CFG_TEST_STR", "fallback"))
}
