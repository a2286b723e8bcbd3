package models

import "errors"

// Standard validation errors for triage payloads
var (
	// ErrInvalidRequest is returned when a triage request fails validation
	ErrInvalidRequest = errors.New("invalid triage request")

	// ErrInvalidResult is returned when a triage result fails schema validation
	ErrInvalidResult = errors.New("invalid triage result")
)
