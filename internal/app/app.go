// Package app wires configuration into the components shared by the server and CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"medtriage/internal/ai"
	"medtriage/internal/config"
	"medtriage/internal/store"
	"medtriage/internal/triage"
)

// Components holds the application components built from configuration
type Components struct {
	Assessor *triage.Assessor
	Audit    *store.AuditLog
	Storage  *store.HealthChecker
}

// Close releases resources held by the components
func (c *Components) Close() error {
	if c.Audit != nil {
		return c.Audit.Close()
	}
	return nil
}

// Build creates the assessor for the configured path, the audit log when a
// path is configured, and the storage checker when a database is configured.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	assessor, err := NewAssessor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Components{Assessor: assessor}

	if cfg.Audit.Path != "" {
		c.Audit, err = store.OpenAuditLog(ctx, cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Database.Configured() {
		c.Storage = store.NewHealthChecker(cfg.Database, cfg.Model.Region)
	}
	return c, nil
}

// NewAssessor creates only the collaborator the configured path needs
func NewAssessor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*triage.Assessor, error) {
	tcfg := triage.Config{
		AgentID:      cfg.Agent.ID,
		AgentAliasID: cfg.Agent.AliasID,
		MaxTokens:    cfg.Model.MaxTokens,
	}

	if cfg.UsesAgent() {
		agent, err := ai.NewBedrockAgent(ctx, cfg.Model.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent client: %w", err)
		}
		logger.Info("Using managed-agent path",
			zap.String("agent_id", cfg.Agent.ID),
			zap.String("alias_id", cfg.Agent.AliasID))
		return triage.NewAssessor(tcfg, nil, agent, logger)
	}

	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Using direct-model path",
		zap.String("provider", string(model.Type())),
		zap.String("model", model.Name()))
	return triage.NewAssessor(tcfg, model, nil, logger)
}

// NewModel creates the direct-model backend for cfg
func NewModel(cfg *config.Config) (ai.ModelInvoker, error) {
	modelType, err := ai.ParseModelType(cfg.Model.Provider)
	if err != nil {
		return nil, err
	}

	mcfg := ai.ModelConfig{
		APIKey:    cfg.APIKey(),
		ModelName: cfg.ModelName(),
		Region:    cfg.Model.Region,
		MaxTokens: cfg.Model.MaxTokens,
		Timeout:   cfg.Model.TimeoutSeconds,
	}
	return ai.NewModelInvoker(string(modelType), mcfg)
}
