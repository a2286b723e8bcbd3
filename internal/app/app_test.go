package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medtriage/internal/ai"
	"medtriage/internal/config"
	"medtriage/internal/triage"
)

func claudeConfig() *config.Config {
	cfg := config.Default()
	cfg.Model.Provider = "claude"
	cfg.Model.AnthropicAPIKey = "test-key"
	return cfg
}

func TestNewModel(t *testing.T) {
	model, err := NewModel(claudeConfig())
	require.NoError(t, err)
	assert.Equal(t, ai.ModelClaude, model.Type())

	cfg := config.Default()
	cfg.Model.Provider = "gemini"
	cfg.Model.GeminiAPIKey = "test-key"
	model, err = NewModel(cfg)
	require.NoError(t, err)
	assert.Equal(t, ai.ModelGemini, model.Type())

	cfg.Model.Provider = "llama"
	_, err = NewModel(cfg)
	assert.ErrorIs(t, err, ai.ErrUnsupportedModel)
}

func TestNewModel_ConfiguredModelName(t *testing.T) {
	cfg := claudeConfig()
	cfg.Model.ModelID = "us.anthropic.claude-sonnet-4-5-v1:0"
	cfg.Model.AnthropicModel = "claude-opus-4-1"
	model, err := NewModel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", model.Name())

	// Unset falls back to the provider default rather than the Bedrock id.
	cfg.Model.AnthropicModel = ""
	model, err = NewModel(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Model.ModelID, model.Name())
	assert.NotEmpty(t, model.Name())

	cfg = config.Default()
	cfg.Model.Provider = "gemini"
	cfg.Model.GeminiAPIKey = "test-key"
	cfg.Model.GeminiModel = "gemini-2.5-pro"
	model, err = NewModel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", model.Name())
}

func TestBuild(t *testing.T) {
	cfg := claudeConfig()
	cfg.Audit.Path = ":memory:"
	cfg.Database.Host = "db.internal"

	c, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, triage.PathModel, c.Assessor.Path())
	assert.NotNil(t, c.Audit)
	assert.NotNil(t, c.Storage)
}

func TestBuild_Minimal(t *testing.T) {
	c, err := Build(context.Background(), claudeConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c.Audit)
	assert.Nil(t, c.Storage)
	assert.NoError(t, c.Close())
}
