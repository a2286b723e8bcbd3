package triage

import (
	"fmt"

	"medtriage/internal/models"
)

// Reasons recorded when an extractor cannot produce a validated result
const (
	ReasonModelNoAction = "model did not call the required action"
	ReasonAgentNoResult = "agent did not return a structured result"
)

const (
	fallbackConfidence    = 0.0
	fallbackRecommendText = "Unable to complete assessment: %s. Treat as high priority."
)

// SafetyFallback returns the conservative result used whenever a structured
// assessment cannot be extracted. It never fails.
func SafetyFallback(reason string) *models.TriageResult {
	disclaimer := StandardDisclaimer
	return &models.TriageResult{
		Severity:          models.SeverityHigh,
		Confidence:        fallbackConfidence,
		Recommendations:   []string{fmt.Sprintf(fallbackRecommendText, reason)},
		ForceHighPriority: true,
		SafetyDisclaimer:  &disclaimer,
	}
}
