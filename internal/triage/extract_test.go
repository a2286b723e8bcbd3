package triage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtriage/internal/ai"
	"medtriage/internal/models"
	"medtriage/internal/tools"
)

func strPtr(s string) *string { return &s }

func toolUseResponse(name string, input map[string]any) *ai.ConverseResponse {
	return &ai.ConverseResponse{
		StopReason: ai.StopReasonToolUse,
		Content: []ai.ContentBlock{
			{Type: ai.ContentToolUse, ToolUse: &ai.ToolUse{ID: "tu-1", Name: name, Input: input}},
		},
	}
}

func validInput() map[string]any {
	return map[string]any{
		"severity":            "critical",
		"confidence":          0.97,
		"recommendations":     []any{"call ambulance"},
		"force_high_priority": false,
		"safety_disclaimer":   "Seek care.",
	}
}

func assertFallback(t *testing.T, got *models.TriageResult, reason string) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, 0.0, got.Confidence)
	assert.True(t, got.ForceHighPriority)
	require.NotNil(t, got.SafetyDisclaimer)
	assert.Equal(t, StandardDisclaimer, *got.SafetyDisclaimer)
	assert.Equal(t, []string{"Unable to complete assessment: " + reason + ". Treat as high priority."}, got.Recommendations)
}

func TestExtractFromConverse_Valid(t *testing.T) {
	got, err := ExtractFromConverse(toolUseResponse(tools.SubmitTriageResultName, validInput()))
	require.NoError(t, err)

	want := &models.TriageResult{
		Severity:          models.SeverityCritical,
		Confidence:        0.97,
		Recommendations:   []string{"call ambulance"},
		ForceHighPriority: false,
		SafetyDisclaimer:  strPtr("Seek care."),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFromConverse_SkipsOtherBlocks(t *testing.T) {
	resp := &ai.ConverseResponse{
		StopReason: ai.StopReasonToolUse,
		Content: []ai.ContentBlock{
			{Type: ai.ContentText, Text: "Let me assess."},
			{Type: ai.ContentToolUse, ToolUse: &ai.ToolUse{Name: "other_tool", Input: map[string]any{}}},
			{Type: ai.ContentToolUse, ToolUse: &ai.ToolUse{Name: tools.SubmitTriageResultName, Input: validInput()}},
		},
	}
	got, err := ExtractFromConverse(resp)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, got.Severity)
}

func TestExtractFromConverse_Failures(t *testing.T) {
	withField := func(key string, value any) map[string]any {
		in := validInput()
		in[key] = value
		return in
	}
	without := func(key string) map[string]any {
		in := validInput()
		delete(in, key)
		return in
	}

	tests := []struct {
		name string
		resp *ai.ConverseResponse
	}{
		{"nil response", nil},
		{"plain text", &ai.ConverseResponse{
			StopReason: ai.StopReasonEndTurn,
			Content:    []ai.ContentBlock{{Type: ai.ContentText, Text: "The patient looks fine."}},
		}},
		{"tool use without stop reason", &ai.ConverseResponse{
			StopReason: ai.StopReasonMaxTokens,
			Content:    toolUseResponse(tools.SubmitTriageResultName, validInput()).Content,
		}},
		{"wrong tool name", toolUseResponse("submit_result", validInput())},
		{"no content", &ai.ConverseResponse{StopReason: ai.StopReasonToolUse}},
		{"nil input", toolUseResponse(tools.SubmitTriageResultName, nil)},
		{"confidence above range", toolUseResponse(tools.SubmitTriageResultName, withField("confidence", 1.5))},
		{"confidence below range", toolUseResponse(tools.SubmitTriageResultName, withField("confidence", -0.1))},
		{"unknown severity", toolUseResponse(tools.SubmitTriageResultName, withField("severity", "urgent"))},
		{"confidence as string", toolUseResponse(tools.SubmitTriageResultName, withField("confidence", "0.9"))},
		{"recommendations not a list", toolUseResponse(tools.SubmitTriageResultName, withField("recommendations", "rest"))},
		{"unknown field", toolUseResponse(tools.SubmitTriageResultName, withField("notes", "x"))},
		{"missing field", toolUseResponse(tools.SubmitTriageResultName, without("force_high_priority"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFromConverse(tt.resp)
			assert.ErrorIs(t, err, ErrExtraction)
			assertFallback(t, got, ReasonModelNoAction)
		})
	}
}

func agentResponse(params ...ai.FunctionParameter) *ai.AgentResponse {
	return &ai.AgentResponse{
		SessionID: "sess",
		Events: []ai.AgentEvent{
			{Chunk: "thinking"},
			{ReturnControl: &ai.ReturnControl{
				InvocationID: "inv",
				Invocations: []ai.FunctionInvocation{
					{ActionGroup: "triage", Function: tools.SubmitTriageResultName, Parameters: params},
				},
			}},
		},
	}
}

func param(name, value string) ai.FunctionParameter {
	return ai.FunctionParameter{Name: name, Type: "string", Value: value}
}

func TestExtractFromAgent_Valid(t *testing.T) {
	got, err := ExtractFromAgent(agentResponse(
		param("severity", "high"),
		param("confidence", "0.6"),
		param("recommendations", `["rest"]`),
		param("force_high_priority", "true"),
	))
	require.NoError(t, err)

	want := &models.TriageResult{
		Severity:          models.SeverityHigh,
		Confidence:        0.6,
		Recommendations:   []string{"rest"},
		ForceHighPriority: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFromAgent_Coercion(t *testing.T) {
	tests := []struct {
		name   string
		params []ai.FunctionParameter
		check  func(t *testing.T, r *models.TriageResult)
	}{
		{
			name:   "absent confidence defaults and forces priority",
			params: []ai.FunctionParameter{param("severity", "low")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.Equal(t, 0.5, r.Confidence)
				assert.True(t, r.ForceHighPriority)
				assert.Empty(t, r.Recommendations)
				assert.NotNil(t, r.Recommendations)
				assert.Nil(t, r.SafetyDisclaimer)
			},
		},
		{
			name:   "force flag numeric one",
			params: []ai.FunctionParameter{param("severity", "low"), param("confidence", "0.95"), param("force_high_priority", "1")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.True(t, r.ForceHighPriority)
			},
		},
		{
			name:   "force flag mixed case",
			params: []ai.FunctionParameter{param("severity", "low"), param("confidence", "0.95"), param("force_high_priority", "TRUE")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.True(t, r.ForceHighPriority)
			},
		},
		{
			name:   "force flag other text is false",
			params: []ai.FunctionParameter{param("severity", "low"), param("confidence", "0.95"), param("force_high_priority", "yes")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.False(t, r.ForceHighPriority)
			},
		},
		{
			name:   "disclaimer passed through",
			params: []ai.FunctionParameter{param("severity", "medium"), param("confidence", "0.9"), param("safety_disclaimer", "See a doctor.")},
			check: func(t *testing.T, r *models.TriageResult) {
				require.NotNil(t, r.SafetyDisclaimer)
				assert.Equal(t, "See a doctor.", *r.SafetyDisclaimer)
			},
		},
		{
			name:   "empty disclaimer becomes null",
			params: []ai.FunctionParameter{param("severity", "medium"), param("confidence", "0.9"), param("safety_disclaimer", "")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.Nil(t, r.SafetyDisclaimer)
			},
		},
		{
			name:   "unknown parameters ignored",
			params: []ai.FunctionParameter{param("severity", "medium"), param("confidence", "0.9"), param("notes", "n/a")},
			check: func(t *testing.T, r *models.TriageResult) {
				assert.Equal(t, models.SeverityMedium, r.Severity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFromAgent(agentResponse(tt.params...))
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestExtractFromAgent_Failures(t *testing.T) {
	base := func(extra ...ai.FunctionParameter) []ai.FunctionParameter {
		return append([]ai.FunctionParameter{param("severity", "high"), param("confidence", "0.9")}, extra...)
	}

	tests := []struct {
		name string
		resp *ai.AgentResponse
	}{
		{"nil response", nil},
		{"text only", &ai.AgentResponse{Events: []ai.AgentEvent{{Chunk: "Patient is fine."}}}},
		{"no events", &ai.AgentResponse{}},
		{"wrong function", &ai.AgentResponse{Events: []ai.AgentEvent{{ReturnControl: &ai.ReturnControl{
			Invocations: []ai.FunctionInvocation{{Function: "lookup_hospital", Parameters: base()}},
		}}}}},
		{"unparsable confidence", agentResponse(param("severity", "high"), param("confidence", "very sure"))},
		{"confidence out of range", agentResponse(param("severity", "high"), param("confidence", "1.2"))},
		{"missing severity", agentResponse(param("confidence", "0.9"))},
		{"invalid severity", agentResponse(param("severity", "urgent"), param("confidence", "0.9"))},
		{"malformed recommendations", agentResponse(base(param("recommendations", `["rest"`))...)},
		{"recommendations object", agentResponse(base(param("recommendations", `{"a":1}`))...)},
		{"recommendations null", agentResponse(base(param("recommendations", `null`))...)},
		{"recommendations empty string", agentResponse(base(param("recommendations", ""))...)},
		{"recommendations with numbers", agentResponse(base(param("recommendations", `[1,2]`))...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFromAgent(tt.resp)
			assert.ErrorIs(t, err, ErrExtraction)
			assertFallback(t, got, ReasonAgentNoResult)
		})
	}
}

func TestExtractFromAgent_FirstValidInvocationWins(t *testing.T) {
	resp := &ai.AgentResponse{Events: []ai.AgentEvent{{ReturnControl: &ai.ReturnControl{
		Invocations: []ai.FunctionInvocation{
			{Function: tools.SubmitTriageResultName, Parameters: []ai.FunctionParameter{param("severity", "bogus")}},
			{Function: tools.SubmitTriageResultName, Parameters: []ai.FunctionParameter{param("severity", "medium"), param("confidence", "0.9")}},
		},
	}}}}

	got, err := ExtractFromAgent(resp)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, got.Severity)
}

func TestSafetyFallback(t *testing.T) {
	got := SafetyFallback("timeout")
	assertFallback(t, got, "timeout")

	// Each call returns an independent value.
	got.Recommendations[0] = "changed"
	assert.NotEqual(t, "changed", SafetyFallback("timeout").Recommendations[0])
}

func TestExtractFromConverse_DecodeErrorSurfaces(t *testing.T) {
	resp := toolUseResponse(tools.SubmitTriageResultName, nil)
	resp.Content[0].ToolUse.DecodeErr = errors.New("decode tool input: unexpected string")

	got, err := ExtractFromConverse(resp)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Contains(t, err.Error(), "decode tool input")
	assertFallback(t, got, ReasonModelNoAction)
}
