package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medtriage/internal/ai"
	"medtriage/internal/models"
)

// ErrMissingCollaborator is returned when the configured path has no backend to call
var ErrMissingCollaborator = errors.New("triage: missing collaborator for configured path")

// Config is the static configuration of an Assessor. A non-empty AgentID
// selects the agent path for the Assessor's lifetime.
type Config struct {
	AgentID      string
	AgentAliasID string
	MaxTokens    int
}

// Outcome describes one completed assessment
type Outcome struct {
	Result         *models.TriageResult
	Path           Path
	ModelID        string
	SessionID      string
	FallbackReason string
	Duration       time.Duration
}

// Fallback reports whether the result is the safety fallback
func (o *Outcome) Fallback() bool {
	return o.FallbackReason != ""
}

// Option configures an Assessor
type Option func(*Assessor)

// WithSessionIDs overrides the agent session id generator
func WithSessionIDs(gen func() string) Option {
	return func(a *Assessor) {
		if ap, ok := a.strategy.(*agentPath); ok && gen != nil {
			ap.sessionID = gen
		}
	}
}

// WithClock overrides the time source used for durations
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) {
		if now != nil {
			a.now = now
		}
	}
}

// Assessor turns triage requests into validated results through one model path.
// It holds no mutable state and is safe for concurrent use.
type Assessor struct {
	strategy assessmentPath
	logger   *zap.Logger
	now      func() time.Time
}

// NewAssessor selects the invocation path from cfg. Only the collaborator for
// the selected path is required; the other may be nil.
func NewAssessor(cfg Config, model ai.ModelInvoker, agent ai.AgentInvoker, logger *zap.Logger, opts ...Option) (*Assessor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Assessor{logger: logger, now: time.Now}
	if cfg.AgentID != "" {
		if agent == nil {
			return nil, fmt.Errorf("%w: agent %s configured without an agent client", ErrMissingCollaborator, cfg.AgentID)
		}
		aliasID := cfg.AgentAliasID
		if aliasID == "" {
			aliasID = ai.DefaultAgentAliasID
		}
		a.strategy = &agentPath{agent: agent, agentID: cfg.AgentID, aliasID: aliasID, sessionID: newSessionID}
	} else {
		if model == nil {
			return nil, fmt.Errorf("%w: no agent id and no model", ErrMissingCollaborator)
		}
		a.strategy = &modelPath{model: model, maxTokens: cfg.MaxTokens}
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With(zap.String("path", string(a.strategy.path())))
	return a, nil
}

// Path returns the invocation path selected at construction
func (a *Assessor) Path() Path {
	return a.strategy.path()
}

// Assess returns the triage result for req. Collaborator failures are returned
// as errors; extraction failures yield the safety fallback.
func (a *Assessor) Assess(ctx context.Context, req *models.TriageRequest) (*models.TriageResult, error) {
	outcome, err := a.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}
	return outcome.Result, nil
}

// Evaluate is Assess with the details needed for auditing
func (a *Assessor) Evaluate(ctx context.Context, req *models.TriageRequest) (*Outcome, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", models.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req)
	start := a.now()

	inv, err := a.strategy.invoke(ctx, prompt)
	elapsed := a.now().Sub(start)
	if err != nil {
		a.logger.Error("Triage invocation failed",
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return nil, fmt.Errorf("%s path invocation: %w", a.strategy.path(), err)
	}

	outcome := &Outcome{
		Result:         inv.result,
		Path:           a.strategy.path(),
		ModelID:        inv.modelID,
		SessionID:      inv.sessionID,
		FallbackReason: inv.fallbackReason,
		Duration:       elapsed,
	}

	// Patient details stay out of the logs.
	fields := []zap.Field{
		zap.String("session_id", outcome.SessionID),
		zap.String("severity", string(outcome.Result.Severity)),
		zap.Float64("confidence", outcome.Result.Confidence),
		zap.Bool("force_high_priority", outcome.Result.ForceHighPriority),
		zap.Duration("duration", elapsed),
	}
	if inv.extractErr != nil {
		a.logger.Warn("Falling back to high priority",
			append(fields, zap.String("reason", inv.fallbackReason), zap.Error(inv.extractErr))...)
	} else {
		a.logger.Info("Triage assessment complete", fields...)
	}
	return outcome, nil
}
