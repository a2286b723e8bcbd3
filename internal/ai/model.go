package ai

import (
	"context"

	"medtriage/internal/tools"
)

// ModelType represents the backend serving the direct-model path
type ModelType string

const (
	// ModelBedrock represents a model hosted on Amazon Bedrock, called through the Converse API
	ModelBedrock ModelType = "bedrock"

	// ModelClaude represents Anthropic's Claude, called through the Messages API
	ModelClaude ModelType = "claude"

	// ModelGemini represents Google's Gemini model
	ModelGemini ModelType = "gemini"
)

// Stop reasons reported by a direct-model invocation
const (
	StopReasonToolUse   = "tool_use"
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
)

// Content block types
const (
	ContentText    = "text"
	ContentToolUse = "tool_use"
)

// ConverseRequest is a single-turn model invocation offering one tool
type ConverseRequest struct {
	// System is the fixed system instruction
	System string

	// Prompt is the single user turn
	Prompt string

	// Tool is the action offered to the model; nil sends a plain text request
	Tool *tools.Descriptor

	// ForceTool pre-selects Tool so the model cannot answer with text alone
	ForceTool bool

	// MaxTokens caps the output length; zero uses the model's configured default
	MaxTokens int
}

// ToolUse is a structured action invocation returned by the model
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
	// DecodeErr is set when the backend could not decode the tool input into Input
	DecodeErr error
}

// ContentBlock is one block of a model response
type ContentBlock struct {
	Type    string
	Text    string
	ToolUse *ToolUse
}

// ConverseResponse represents the raw response of a direct-model invocation
type ConverseResponse struct {
	StopReason   string
	Content      []ContentBlock
	ModelID      string
	InputTokens  int
	OutputTokens int
}

// ModelConfig contains configuration for direct-model backends
type ModelConfig struct {
	APIKey    string
	Endpoint  string
	ModelName string
	Region    string
	MaxTokens int
	Timeout   int // Timeout in seconds
}

// ModelInvoker defines the interface for direct-model backends
type ModelInvoker interface {
	// Name returns the model identifier
	Name() string

	// Type returns the backend type
	Type() ModelType

	// Converse performs exactly one model invocation
	Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error)
}

// AgentRequest is a single managed-agent invocation
type AgentRequest struct {
	AgentID     string
	AliasID     string
	SessionID   string
	InputText   string
	EnableTrace bool
	EndSession  bool
}

// FunctionParameter is one flat name/value argument of a returned function invocation
type FunctionParameter struct {
	Name  string
	Type  string
	Value string
}

// FunctionInvocation is a function the agent asks the caller to execute
type FunctionInvocation struct {
	ActionGroup string
	Function    string
	Parameters  []FunctionParameter
}

// ReturnControl hands control back to the caller instead of a text reply
type ReturnControl struct {
	InvocationID string
	Invocations  []FunctionInvocation
}

// AgentEvent is one event of the agent's response stream
type AgentEvent struct {
	Chunk         string
	ReturnControl *ReturnControl
}

// AgentResponse represents the collected event stream of an agent invocation
type AgentResponse struct {
	SessionID string
	Events    []AgentEvent
}

// AgentInvoker defines the interface for managed conversational agents
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, req *AgentRequest) (*AgentResponse, error)
}

// Factory function type for creating models
type ModelFactory func(config ModelConfig) (ModelInvoker, error)

// Registry of model factories
var modelFactories = make(map[ModelType]ModelFactory)

// RegisterModel registers a model factory for a given model type
func RegisterModel(modelType ModelType, factory ModelFactory) {
	modelFactories[modelType] = factory
}

// GetModel returns a model instance for the specified model type
func GetModel(modelType ModelType, config ModelConfig) (ModelInvoker, error) {
	factory, exists := modelFactories[modelType]
	if !exists {
		return nil, ErrUnsupportedModel
	}
	return factory(config)
}
