package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"medtriage/internal/models"
	"medtriage/internal/tools"
)

// StandardDisclaimer is attached to every result returned to a caller
const StandardDisclaimer = "This is AI-assisted guidance. Seek professional medical care."

const severityTaxonomy = `
## Severity Levels (WHO IITT / ESI)

| Level | WHO IITT | ESI | Meaning | Response |
|-------|----------|-----|---------|----------|
| critical | Red | 1 | Immediate life-saving; absent airway/breathing/pulse | See immediately |
| high | Red | 2 | High acuity; urgent; unstable vitals | See urgently |
| medium | Yellow | 3 | Moderate acuity; stable but needs care soon | See soon |
| low | Green | 4-5 | Low acuity; can safely wait | Can wait |
`

const priorityRules = `
## Priority Rules

- If confidence in assessment < 85% (0.85): set force_high_priority = true
- Critical/high: recommend immediate transport, alert receiving facility
- Medium: recommend transport within 30-60 min
- Low: recommend routine follow-up
`

// SystemPrompt is the fixed instruction sent with every assessment
var SystemPrompt = "You are an emergency medical triage assistant for rural India. " +
	"Assess patients based on symptoms and vitals using WHO IITT and ESI standards.\n" +
	severityTaxonomy + priorityRules + "\n" +
	"You must call the " + tools.SubmitTriageResultName + " tool with your assessment. Do not respond with text alone.\n" +
	`Always include a safety_disclaimer: "` + StandardDisclaimer + `"` + "\n"

const noVitals = "No vitals provided."

// Prompt holds the two halves of an assessment prompt
type Prompt struct {
	System string
	User   string
}

// Combined joins system and user text for backends that take a single input
func (p Prompt) Combined() string {
	return p.System + "\n\n" + p.User
}

// BuildPrompt assembles the full prompt for a request
func BuildPrompt(req *models.TriageRequest) Prompt {
	return Prompt{System: SystemPrompt, User: BuildUserPrompt(req)}
}

// BuildUserPrompt renders the patient context. It is a pure function of req.
func BuildUserPrompt(req *models.TriageRequest) string {
	lines := []string{
		"Assess this patient and call " + tools.SubmitTriageResultName + " with your assessment.",
		"",
		"Symptoms: " + strings.Join(req.Symptoms, ", "),
		"Vitals: " + formatVitals(req),
	}
	if req.AgeYears != nil {
		lines = append(lines, fmt.Sprintf("Age: %d years", *req.AgeYears))
	}
	if req.Sex != nil && *req.Sex != "" {
		lines = append(lines, "Sex: "+*req.Sex)
	}
	return strings.Join(lines, "\n")
}

// formatVitals encodes vitals as compact JSON. encoding/json sorts map keys,
// so the output is stable for a given map.
func formatVitals(req *models.TriageRequest) string {
	if !req.HasVitals() {
		return noVitals
	}
	b, err := json.Marshal(req.Vitals)
	if err != nil {
		// Validated requests hold only finite values
		return noVitals
	}
	return string(b)
}
