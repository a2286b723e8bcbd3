package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"medtriage/internal/ai"
	"medtriage/internal/models"
	"medtriage/internal/tools"
)

// ErrExtraction is returned alongside the fallback when no validated result could be extracted
var ErrExtraction = errors.New("structured result extraction failed")

// defaultAgentConfidence applies when the agent omits the confidence argument
const defaultAgentConfidence = 0.5

// ExtractFromConverse pulls the submit_triage_result tool input out of a
// direct-model response. The returned result is never nil: on failure it is
// the safety fallback and the error describes why.
func ExtractFromConverse(resp *ai.ConverseResponse) (*models.TriageResult, error) {
	result, err := extractConverse(resp)
	if err != nil {
		return SafetyFallback(ReasonModelNoAction), fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return result, nil
}

func extractConverse(resp *ai.ConverseResponse) (*models.TriageResult, error) {
	if resp == nil {
		return nil, errors.New("empty response")
	}
	if resp.StopReason != ai.StopReasonToolUse {
		return nil, fmt.Errorf("stop reason %q", resp.StopReason)
	}

	var lastErr error
	for _, use := range resp.ToolUses() {
		if use.Name != tools.SubmitTriageResultName {
			continue
		}
		if use.DecodeErr != nil {
			lastErr = use.DecodeErr
			continue
		}
		result, err := models.ResultFromPayload(use.Input)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no %s tool use in response", tools.SubmitTriageResultName)
}

// ExtractFromAgent pulls the submit_triage_result function invocation out of
// an agent's return-control events. Like ExtractFromConverse it always returns
// a result, falling back when nothing validates.
func ExtractFromAgent(resp *ai.AgentResponse) (*models.TriageResult, error) {
	result, err := extractAgent(resp)
	if err != nil {
		return SafetyFallback(ReasonAgentNoResult), fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return result, nil
}

func extractAgent(resp *ai.AgentResponse) (*models.TriageResult, error) {
	if resp == nil {
		return nil, errors.New("empty response")
	}

	var lastErr error
	for _, event := range resp.Events {
		if event.ReturnControl == nil {
			continue
		}
		for _, inv := range event.ReturnControl.Invocations {
			if inv.Function != tools.SubmitTriageResultName {
				continue
			}
			payload, err := payloadFromParameters(inv.Parameters)
			if err == nil {
				var result *models.TriageResult
				if result, err = models.ResultFromPayload(payload); err == nil {
					return result, nil
				}
			}
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no %s invocation in return control", tools.SubmitTriageResultName)
}

// payloadFromParameters rebuilds a typed payload from flat string arguments.
// Unknown parameter names are ignored.
func payloadFromParameters(params []ai.FunctionParameter) (map[string]any, error) {
	values := make(map[string]string, len(params))
	for _, p := range params {
		values[p.Name] = p.Value
	}

	payload := map[string]any{
		models.FieldConfidence:        defaultAgentConfidence,
		models.FieldRecommendations:   []any{},
		models.FieldForceHighPriority: false,
		models.FieldSafetyDisclaimer:  nil,
	}

	if v, ok := values[models.FieldSeverity]; ok {
		payload[models.FieldSeverity] = v
	}

	if v, ok := values[models.FieldConfidence]; ok {
		confidence, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("confidence %q is not a number", v)
		}
		payload[models.FieldConfidence] = confidence
	}

	if v, ok := values[models.FieldRecommendations]; ok {
		recs, err := decodeRecommendations(v)
		if err != nil {
			return nil, err
		}
		payload[models.FieldRecommendations] = recs
	}

	if v, ok := values[models.FieldForceHighPriority]; ok {
		v = strings.TrimSpace(v)
		payload[models.FieldForceHighPriority] = strings.EqualFold(v, "true") || v == "1"
	}

	if v, ok := values[models.FieldSafetyDisclaimer]; ok && v != "" {
		payload[models.FieldSafetyDisclaimer] = v
	}

	return payload, nil
}

func decodeRecommendations(raw string) ([]any, error) {
	var recs []any
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("recommendations are not a JSON array: %w", err)
	}
	if recs == nil {
		return nil, errors.New("recommendations are null")
	}
	return recs, nil
}
