package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values for Claude
const (
	defaultClaudeEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultClaudeModel     = "claude-sonnet-4-5"
	defaultClaudeMaxTokens = 1024
	defaultClaudeTimeout   = 60 // seconds
	anthropicVersion       = "2023-06-01"
)

// ClaudeModel calls Anthropic's Messages API directly
type ClaudeModel struct {
	config    ModelConfig
	client    *http.Client
	modelName string
}

// Register the Claude model factory
func init() {
	RegisterModel(ModelClaude, NewClaudeModel)
}

// NewClaudeModel creates a new instance of the Claude model
func NewClaudeModel(config ModelConfig) (ModelInvoker, error) {
	// Set default values if not provided
	if config.Endpoint == "" {
		config.Endpoint = defaultClaudeEndpoint
	}

	if config.ModelName == "" {
		config.ModelName = defaultClaudeModel
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = defaultClaudeMaxTokens
	}

	if config.Timeout == 0 {
		config.Timeout = defaultClaudeTimeout
	}

	// Validate configuration
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: Claude API key is required", ErrInvalidConfiguration)
	}

	client := &http.Client{
		Timeout: time.Duration(config.Timeout) * time.Second,
	}

	return &ClaudeModel{
		config:    config,
		client:    client,
		modelName: config.ModelName,
	}, nil
}

// Name returns the name of the model
func (m *ClaudeModel) Name() string {
	return m.modelName
}

// Type returns the type of model
func (m *ClaudeModel) Type() ModelType {
	return ModelClaude
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type claudeContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeRequest struct {
	Model      string            `json:"model"`
	System     string            `json:"system,omitempty"`
	Messages   []claudeMessage   `json:"messages"`
	MaxTokens  int               `json:"max_tokens"`
	Tools      []claudeTool      `json:"tools,omitempty"`
	ToolChoice *claudeToolChoice `json:"tool_choice,omitempty"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    []claudeContent `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Converse sends a single Messages API request offering the descriptor as a tool
func (m *ClaudeModel) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.config.MaxTokens
	}

	payload := claudeRequest{
		Model:  m.modelName,
		System: req.System,
		Messages: []claudeMessage{
			{Role: "user", Content: []claudeContent{{Type: "text", Text: req.Prompt}}},
		},
		MaxTokens: maxTokens,
	}
	if req.Tool != nil {
		payload.Tools = []claudeTool{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			InputSchema: req.Tool.JSONSchema(),
		}}
		if req.ForceTool {
			payload.ToolChoice = &claudeToolChoice{Type: "tool", Name: req.Tool.Name}
		}
	}

	// Convert payload to JSON
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	// Create the HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", m.config.APIKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	// Send the request
	resp, err := m.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrContextDeadlineExceeded
		}
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, claudeStatusError(resp.StatusCode, body)
	}

	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrAPICallFailed, err)
	}

	out := &ConverseResponse{
		StopReason:   parsed.StopReason,
		ModelID:      parsed.Model,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}
	for _, c := range parsed.Content {
		switch c.Type {
		case "text":
			out.Content = append(out.Content, ContentBlock{Type: ContentText, Text: c.Text})
		case "tool_use":
			use := &ToolUse{ID: c.ID, Name: c.Name}
			if len(c.Input) > 0 {
				if err := json.Unmarshal(c.Input, &use.Input); err != nil {
					use.Input = nil
					use.DecodeErr = fmt.Errorf("decode tool input: %w", err)
				}
			}
			out.Content = append(out.Content, ContentBlock{Type: ContentToolUse, ToolUse: use})
		}
	}
	return out, nil
}

func claudeStatusError(status int, body []byte) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimitExceeded
	case http.StatusServiceUnavailable, 529:
		return ErrModelUnavailable
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status code %d", ErrAccessDenied, status)
	}

	var errorResponse struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		return fmt.Errorf("%w: %s", ErrAPICallFailed, errorResponse.Error.Message)
	}
	return fmt.Errorf("%w: status code %d", ErrAPICallFailed, status)
}
