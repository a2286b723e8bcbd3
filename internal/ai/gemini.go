package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"medtriage/internal/tools"
)

// Default configuration values for Gemini
const (
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGeminiMaxTokens = 1024
)

// contentGenerator is the subset of the genai models service used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiModel calls Google's Gemini API through function calling
type GeminiModel struct {
	generator contentGenerator
	modelName string
	maxTokens int
}

// Register the Gemini model factory
func init() {
	RegisterModel(ModelGemini, NewGeminiModel)
}

// NewGeminiModel creates a new instance of the Gemini model
func NewGeminiModel(config ModelConfig) (ModelInvoker, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrInvalidConfiguration)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GenAI client: %v", ErrInvalidConfiguration, err)
	}

	return NewGeminiModelWithGenerator(client.Models, config), nil
}

// NewGeminiModelWithGenerator creates a GeminiModel with an injected generator
func NewGeminiModelWithGenerator(generator contentGenerator, config ModelConfig) *GeminiModel {
	if config.ModelName == "" {
		config.ModelName = defaultGeminiModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultGeminiMaxTokens
	}
	return &GeminiModel{
		generator: generator,
		modelName: config.ModelName,
		maxTokens: config.MaxTokens,
	}
}

// Name returns the name of the model
func (m *GeminiModel) Name() string {
	return m.modelName
}

// Type returns the type of model
func (m *GeminiModel) Type() ModelType {
	return ModelGemini
}

// Converse performs a single GenerateContent call
func (m *GeminiModel) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.maxTokens
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Tool != nil {
		cfg.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{geminiFunction(*req.Tool)},
		}}
		if req.ForceTool {
			cfg.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{
					Mode:                 genai.FunctionCallingConfigModeAny,
					AllowedFunctionNames: []string{req.Tool.Name},
				},
			}
		}
	}

	resp, err := m.generator.GenerateContent(ctx, m.modelName, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	out := geminiResponse(resp)
	out.ModelID = m.modelName
	return out, nil
}

func geminiFunction(d tools.Descriptor) *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(d.Arguments)),
		Required:   d.ArgumentNames(),
	}
	for _, arg := range d.Arguments {
		prop := &genai.Schema{
			Type:        geminiType(arg.Type),
			Description: arg.Description,
			Enum:        arg.Enum,
			Minimum:     arg.Minimum,
			Maximum:     arg.Maximum,
		}
		if arg.Type == tools.TypeArray {
			prop.Items = &genai.Schema{Type: geminiType(arg.Items)}
		}
		schema.Properties[arg.Name] = prop
	}
	return &genai.FunctionDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  schema,
	}
}

func geminiType(t tools.ArgType) genai.Type {
	switch t {
	case tools.TypeNumber:
		return genai.TypeNumber
	case tools.TypeBoolean:
		return genai.TypeBoolean
	case tools.TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

// geminiResponse flattens the first candidate. Any function call makes the
// stop reason tool_use, matching the other backends.
func geminiResponse(resp *genai.GenerateContentResponse) *ConverseResponse {
	out := &ConverseResponse{}
	if resp == nil {
		return out
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonMaxTokens:
		out.StopReason = StopReasonMaxTokens
	default:
		out.StopReason = StopReasonEndTurn
	}
	if candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			out.StopReason = StopReasonToolUse
			out.Content = append(out.Content, ContentBlock{
				Type: ContentToolUse,
				ToolUse: &ToolUse{
					ID:    part.FunctionCall.ID,
					Name:  part.FunctionCall.Name,
					Input: part.FunctionCall.Args,
				},
			})
			continue
		}
		if part.Text != "" {
			out.Content = append(out.Content, ContentBlock{Type: ContentText, Text: part.Text})
		}
	}
	return out
}

func classifyGeminiError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrContextDeadlineExceeded
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAPICallFailed, err)
}
