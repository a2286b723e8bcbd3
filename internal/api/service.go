package api

import (
	"context"

	"go.uber.org/zap"

	"medtriage/internal/models"
	"medtriage/internal/store"
	"medtriage/internal/triage"
)

// Evaluator runs one triage assessment
type Evaluator interface {
	Evaluate(ctx context.Context, req *models.TriageRequest) (*triage.Outcome, error)
	Path() triage.Path
}

// AuditRecorder stores assessment outcomes
type AuditRecorder interface {
	Record(ctx context.Context, entry store.AuditEntry) error
}

// TriageService coordinates an assessment with the work around it: the
// disclaimer policy and the audit log.
type TriageService struct {
	evaluator Evaluator
	audit     AuditRecorder
	logger    *zap.Logger
}

// NewTriageService creates a service. audit may be nil to disable auditing.
func NewTriageService(evaluator Evaluator, audit AuditRecorder, logger *zap.Logger) *TriageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageService{
		evaluator: evaluator,
		audit:     audit,
		logger:    logger,
	}
}

// Path returns the invocation path of the underlying evaluator
func (s *TriageService) Path() triage.Path {
	return s.evaluator.Path()
}

// Assess evaluates req and returns a result that always carries a disclaimer
func (s *TriageService) Assess(ctx context.Context, req *models.TriageRequest) (*models.TriageResult, error) {
	outcome, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	result := outcome.Result
	if !result.HasDisclaimer() {
		result = result.WithDisclaimer(triage.StandardDisclaimer)
	}

	s.record(ctx, outcome)
	return result, nil
}

// record writes the audit entry. Failures are logged and otherwise ignored.
func (s *TriageService) record(ctx context.Context, outcome *triage.Outcome) {
	if s.audit == nil {
		return
	}

	entry := store.AuditEntry{
		Path:              string(outcome.Path),
		SessionID:         outcome.SessionID,
		ModelID:           outcome.ModelID,
		Severity:          string(outcome.Result.Severity),
		Confidence:        outcome.Result.Confidence,
		ForceHighPriority: outcome.Result.ForceHighPriority,
		FallbackReason:    outcome.FallbackReason,
		Duration:          outcome.Duration,
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Failed to record assessment", zap.Error(err))
	}
}
