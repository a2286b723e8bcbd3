package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"medtriage/internal/tools"
)

// Default configuration values for Bedrock
const (
	DefaultBedrockModel     = "us.anthropic.claude-3-5-sonnet-v2:0"
	DefaultBedrockRegion    = "us-east-1"
	defaultBedrockMaxTokens = 1024
)

// converseAPI is the subset of the Bedrock runtime client used here
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockModel calls a Bedrock-hosted model through the Converse API
type BedrockModel struct {
	client    converseAPI
	modelID   string
	maxTokens int
}

// Register the Bedrock model factory
func init() {
	RegisterModel(ModelBedrock, NewBedrockModel)
}

// NewBedrockModel creates a Bedrock Converse client using the default AWS credential chain
func NewBedrockModel(config ModelConfig) (ModelInvoker, error) {
	if config.Region == "" {
		config.Region = DefaultBedrockRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", ErrInvalidConfiguration, err)
	}

	return NewBedrockModelWithClient(bedrockruntime.NewFromConfig(awsCfg), config), nil
}

// NewBedrockModelWithClient creates a BedrockModel with an injected runtime client.
// Used for testing without AWS access.
func NewBedrockModelWithClient(client converseAPI, config ModelConfig) *BedrockModel {
	if config.ModelName == "" {
		config.ModelName = DefaultBedrockModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultBedrockMaxTokens
	}
	return &BedrockModel{
		client:    client,
		modelID:   config.ModelName,
		maxTokens: config.MaxTokens,
	}
}

// Name returns the Bedrock model id
func (m *BedrockModel) Name() string {
	return m.modelID
}

// Type returns the type of model
func (m *BedrockModel) Type() ModelType {
	return ModelBedrock
}

// Converse performs a single Converse call
func (m *BedrockModel) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	out, err := m.client.Converse(ctx, m.buildInput(req))
	if err != nil {
		return nil, classifyAWSError("bedrock converse "+m.modelID, err)
	}

	resp := converseResponseFromOutput(out)
	resp.ModelID = m.modelID
	return resp, nil
}

func (m *BedrockModel) buildInput(req *ConverseRequest) *bedrockruntime.ConverseInput {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.maxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(m.modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.Tool != nil {
		input.ToolConfig = bedrockToolConfig(*req.Tool, req.ForceTool)
	}
	return input
}

func bedrockToolConfig(d tools.Descriptor, force bool) *types.ToolConfiguration {
	cfg := &types.ToolConfiguration{
		Tools: []types.Tool{
			&types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(d.Name),
					Description: aws.String(d.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{
						Value: document.NewLazyDocument(d.JSONSchema()),
					},
				},
			},
		},
	}
	if force {
		cfg.ToolChoice = &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(d.Name)},
		}
	}
	return cfg
}

// converseResponseFromOutput flattens a Converse output into a ConverseResponse.
// A tool input that cannot be decoded is returned with a nil Input and DecodeErr set.
func converseResponseFromOutput(out *bedrockruntime.ConverseOutput) *ConverseResponse {
	resp := &ConverseResponse{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}

	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Content = append(resp.Content, ContentBlock{Type: ContentText, Text: b.Value})
		case *types.ContentBlockMemberToolUse:
			input, err := decodeDocument(b.Value.Input)
			resp.Content = append(resp.Content, ContentBlock{
				Type: ContentToolUse,
				ToolUse: &ToolUse{
					ID:        aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Input:     input,
					DecodeErr: err,
				},
			})
		}
	}
	return resp
}

func decodeDocument(doc document.Interface) (map[string]any, error) {
	if doc == nil {
		return nil, nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil, fmt.Errorf("marshal tool input: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode tool input: %w", err)
	}
	return input, nil
}

// NewBedrockModels creates one model per id sharing a single runtime client
func NewBedrockModels(ctx context.Context, region string, ids []string, maxTokens int) ([]ModelInvoker, error) {
	if region == "" {
		region = DefaultBedrockRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", ErrInvalidConfiguration, err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	models := make([]ModelInvoker, len(ids))
	for i, id := range ids {
		models[i] = NewBedrockModelWithClient(client, ModelConfig{ModelName: id, MaxTokens: maxTokens})
	}
	return models, nil
}
