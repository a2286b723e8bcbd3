package triage

import (
	"context"

	"github.com/google/uuid"

	"medtriage/internal/ai"
	"medtriage/internal/models"
	"medtriage/internal/tools"
)

// Path identifies the invocation strategy an Assessor uses
type Path string

const (
	// PathAgent invokes a managed Bedrock Agent and reads its return-control event
	PathAgent Path = "agent"

	// PathModel invokes a model directly with forced tool use
	PathModel Path = "model"
)

// invocation is the outcome of one call on a path before logging and timing
type invocation struct {
	result         *models.TriageResult
	extractErr     error
	fallbackReason string
	sessionID      string
	modelID        string
}

// assessmentPath performs exactly one outbound call and extracts its result.
// Only collaborator failures are returned as errors.
type assessmentPath interface {
	path() Path
	invoke(ctx context.Context, prompt Prompt) (*invocation, error)
}

type modelPath struct {
	model     ai.ModelInvoker
	maxTokens int
}

func (p *modelPath) path() Path { return PathModel }

func (p *modelPath) invoke(ctx context.Context, prompt Prompt) (*invocation, error) {
	descriptor := tools.SubmitTriageResult()
	resp, err := p.model.Converse(ctx, &ai.ConverseRequest{
		System:    prompt.System,
		Prompt:    prompt.User,
		Tool:      &descriptor,
		ForceTool: true,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	inv := &invocation{modelID: resp.ModelID}
	if inv.modelID == "" {
		inv.modelID = p.model.Name()
	}
	inv.result, inv.extractErr = ExtractFromConverse(resp)
	if inv.extractErr != nil {
		inv.fallbackReason = ReasonModelNoAction
	}
	return inv, nil
}

type agentPath struct {
	agent     ai.AgentInvoker
	agentID   string
	aliasID   string
	sessionID func() string
}

func (p *agentPath) path() Path { return PathAgent }

func (p *agentPath) invoke(ctx context.Context, prompt Prompt) (*invocation, error) {
	sessionID := p.sessionID()
	resp, err := p.agent.InvokeAgent(ctx, &ai.AgentRequest{
		AgentID:     p.agentID,
		AliasID:     p.aliasID,
		SessionID:   sessionID,
		InputText:   prompt.Combined(),
		EnableTrace: true,
		EndSession:  true,
	})
	if err != nil {
		return nil, err
	}

	inv := &invocation{sessionID: sessionID, modelID: p.agentID + "/" + p.aliasID}
	inv.result, inv.extractErr = ExtractFromAgent(resp)
	if inv.extractErr != nil {
		inv.fallbackReason = ReasonAgentNoResult
	}
	return inv, nil
}

func newSessionID() string {
	return uuid.NewString()
}
