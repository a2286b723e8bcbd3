package ai

import (
	"fmt"
	"strings"
)

// ParseModelType maps a configured provider name onto a model type
func ParseModelType(name string) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bedrock", "aws":
		return ModelBedrock, nil
	case "claude", "anthropic":
		return ModelClaude, nil
	case "gemini", "google":
		return ModelGemini, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
	}
}

// NewModelInvoker creates the direct-model backend for a configured provider name
func NewModelInvoker(provider string, config ModelConfig) (ModelInvoker, error) {
	modelType, err := ParseModelType(provider)
	if err != nil {
		return nil, err
	}

	model, err := GetModel(modelType, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", modelType, err)
	}
	return model, nil
}

// ToolUses returns the tool-use blocks of a response in order
func (r *ConverseResponse) ToolUses() []*ToolUse {
	var uses []*ToolUse
	for _, block := range r.Content {
		if block.ToolUse != nil {
			uses = append(uses, block.ToolUse)
		}
	}
	return uses
}

// Text concatenates the text blocks of a response
func (r *ConverseResponse) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == ContentText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
