package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Severity represents the triage severity level of a patient assessment
type Severity string

const (
	// SeverityCritical represents immediate life-saving cases (WHO IITT Red / ESI 1)
	SeverityCritical Severity = "critical"

	// SeverityHigh represents high-acuity, unstable cases (WHO IITT Red / ESI 2)
	SeverityHigh Severity = "high"

	// SeverityMedium represents stable cases that need care soon (WHO IITT Yellow / ESI 3)
	SeverityMedium Severity = "medium"

	// SeverityLow represents low-acuity cases that can safely wait (WHO IITT Green / ESI 4-5)
	SeverityLow Severity = "low"
)

// Severities lists every accepted severity level, most urgent first
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Valid reports whether s belongs to the closed severity set
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

const (
	// ForceHighPriorityThreshold is the confidence below which a result must be forced to high priority
	ForceHighPriorityThreshold = 0.85

	// MaxAgeYears is the upper bound for a patient's age
	MaxAgeYears = 150
)

// Result field names as they appear on the wire and in the tool schema
const (
	FieldSeverity          = "severity"
	FieldConfidence        = "confidence"
	FieldRecommendations   = "recommendations"
	FieldForceHighPriority = "force_high_priority"
	FieldSafetyDisclaimer  = "safety_disclaimer"
)

// resultFields are the keys a structured result payload must carry
var resultFields = []string{
	FieldSeverity,
	FieldConfidence,
	FieldRecommendations,
	FieldForceHighPriority,
	FieldSafetyDisclaimer,
}

// TriageRequest contains the patient data submitted for a single assessment
type TriageRequest struct {
	Symptoms []string           `json:"symptoms"`
	Vitals   map[string]float64 `json:"vitals"`
	AgeYears *int               `json:"age_years,omitempty"`
	Sex      *string            `json:"sex,omitempty"`
}

// NewTriageRequest creates a validated triage request
func NewTriageRequest(symptoms []string, vitals map[string]float64, ageYears *int, sex *string) (*TriageRequest, error) {
	req := &TriageRequest{
		Symptoms: append([]string(nil), symptoms...),
		Vitals:   make(map[string]float64, len(vitals)),
		AgeYears: ageYears,
		Sex:      sex,
	}
	for name, value := range vitals {
		req.Vitals[name] = value
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the request invariants
func (r *TriageRequest) Validate() error {
	if len(r.Symptoms) == 0 {
		return fmt.Errorf("%w: at least one symptom is required", ErrInvalidRequest)
	}
	for i, symptom := range r.Symptoms {
		if strings.TrimSpace(symptom) == "" {
			return fmt.Errorf("%w: symptom %d is empty", ErrInvalidRequest, i)
		}
	}
	for name, value := range r.Vitals {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: vital sign name is empty", ErrInvalidRequest)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: vital %q is not a finite number", ErrInvalidRequest, name)
		}
	}
	if r.AgeYears != nil && (*r.AgeYears < 0 || *r.AgeYears > MaxAgeYears) {
		return fmt.Errorf("%w: age_years must be between 0 and %d", ErrInvalidRequest, MaxAgeYears)
	}
	return nil
}

// HasVitals reports whether any vital signs were provided
func (r *TriageRequest) HasVitals() bool {
	return len(r.Vitals) > 0
}

// TriageResult represents a validated triage assessment
type TriageResult struct {
	Severity          Severity `json:"severity"`
	Confidence        float64  `json:"confidence"`
	Recommendations   []string `json:"recommendations"`
	ForceHighPriority bool     `json:"force_high_priority"`
	SafetyDisclaimer  *string  `json:"safety_disclaimer"`
}

// NewTriageResult creates a validated triage result.
// A confidence below ForceHighPriorityThreshold always yields ForceHighPriority.
func NewTriageResult(severity Severity, confidence float64, recommendations []string, forceHighPriority bool, disclaimer *string) (*TriageResult, error) {
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: severity %q is not one of critical, high, medium, low", ErrInvalidResult, severity)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v is outside [0, 1]", ErrInvalidResult, confidence)
	}

	recs := make([]string, len(recommendations))
	copy(recs, recommendations)

	var d *string
	if disclaimer != nil {
		v := *disclaimer
		d = &v
	}

	return &TriageResult{
		Severity:          severity,
		Confidence:        confidence,
		Recommendations:   recs,
		ForceHighPriority: forceHighPriority || confidence < ForceHighPriorityThreshold,
		SafetyDisclaimer:  d,
	}, nil
}

// HasDisclaimer reports whether the result carries a non-empty disclaimer
func (r *TriageResult) HasDisclaimer() bool {
	return r.SafetyDisclaimer != nil && strings.TrimSpace(*r.SafetyDisclaimer) != ""
}

// WithDisclaimer returns a copy of the result carrying the given disclaimer
func (r *TriageResult) WithDisclaimer(disclaimer string) *TriageResult {
	out := *r
	out.Recommendations = append([]string{}, r.Recommendations...)
	out.SafetyDisclaimer = &disclaimer
	return &out
}

// ResultFromPayload validates a structured tool payload and converts it into a TriageResult.
// Every result field must be present, no other keys are accepted, and each value must have
// the schema's type. Only safety_disclaimer may be null.
func ResultFromPayload(payload map[string]any) (*TriageResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidResult)
	}

	for key := range payload {
		if !isResultField(key) {
			return nil, fmt.Errorf("%w: unexpected field %q", ErrInvalidResult, key)
		}
	}
	for _, key := range resultFields {
		if _, ok := payload[key]; !ok {
			return nil, fmt.Errorf("%w: missing required field %q", ErrInvalidResult, key)
		}
	}

	severity, ok := payload[FieldSeverity].(string)
	if !ok {
		return nil, typeError(FieldSeverity, "string", payload[FieldSeverity])
	}

	confidence, err := toFloat(payload[FieldConfidence])
	if err != nil {
		return nil, err
	}

	recommendations, err := toStringSlice(payload[FieldRecommendations])
	if err != nil {
		return nil, err
	}

	force, ok := payload[FieldForceHighPriority].(bool)
	if !ok {
		return nil, typeError(FieldForceHighPriority, "boolean", payload[FieldForceHighPriority])
	}

	var disclaimer *string
	switch v := payload[FieldSafetyDisclaimer].(type) {
	case nil:
	case string:
		disclaimer = &v
	default:
		return nil, typeError(FieldSafetyDisclaimer, "string or null", v)
	}

	return NewTriageResult(Severity(severity), confidence, recommendations, force, disclaimer)
}

func isResultField(key string) bool {
	for _, f := range resultFields {
		if f == key {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: confidence %q is not a number", ErrInvalidResult, n.String())
		}
		return f, nil
	default:
		return 0, typeError(FieldConfidence, "number", v)
	}
}

func toStringSlice(v any) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []any:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: recommendations[%d] must be a string, got %T", ErrInvalidResult, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, typeError(FieldRecommendations, "array of strings", v)
	}
}

func typeError(field, want string, got any) error {
	return fmt.Errorf("%w: %s must be a %s, got %T", ErrInvalidResult, field, want, got)
}
