package ai

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// DefaultAgentAliasID is the alias of an agent's unpublished working draft
const DefaultAgentAliasID = "TSTALIASID"

// invokeAgentAPI is the subset of the Bedrock agent runtime client used here
type invokeAgentAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// BedrockAgent invokes a Bedrock Agent and collects its response stream
type BedrockAgent struct {
	client invokeAgentAPI
}

// NewBedrockAgent creates an agent runtime client using the default AWS credential chain
func NewBedrockAgent(ctx context.Context, region string) (*BedrockAgent, error) {
	if region == "" {
		region = DefaultBedrockRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", ErrInvalidConfiguration, err)
	}
	return NewBedrockAgentWithClient(bedrockagentruntime.NewFromConfig(awsCfg)), nil
}

// NewBedrockAgentWithClient creates a BedrockAgent with an injected runtime client
func NewBedrockAgentWithClient(client invokeAgentAPI) *BedrockAgent {
	return &BedrockAgent{client: client}
}

// InvokeAgent sends one input to the agent and drains the event stream
func (a *BedrockAgent) InvokeAgent(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", ErrInvalidConfiguration)
	}
	aliasID := req.AliasID
	if aliasID == "" {
		aliasID = DefaultAgentAliasID
	}

	out, err := a.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(aliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.InputText),
		EnableTrace:  aws.Bool(req.EnableTrace),
		EndSession:   aws.Bool(req.EndSession),
	})
	if err != nil {
		return nil, classifyAWSError("bedrock invoke agent "+req.AgentID, err)
	}

	stream := out.GetStream()
	defer stream.Close()

	sessionID := aws.ToString(out.SessionId)
	if sessionID == "" {
		sessionID = req.SessionID
	}
	resp := collectAgentEvents(sessionID, stream.Events())

	if err := stream.Err(); err != nil {
		return nil, classifyAWSError("bedrock agent stream "+req.AgentID, err)
	}
	return resp, nil
}

// collectAgentEvents reads the stream until it closes.
// Trace and other event kinds are skipped.
func collectAgentEvents(sessionID string, events <-chan types.ResponseStream) *AgentResponse {
	resp := &AgentResponse{SessionID: sessionID}
	for event := range events {
		if ev, ok := agentEventFromStream(event); ok {
			resp.Events = append(resp.Events, ev)
		}
	}
	return resp
}

func agentEventFromStream(event types.ResponseStream) (AgentEvent, bool) {
	switch v := event.(type) {
	case *types.ResponseStreamMemberChunk:
		return AgentEvent{Chunk: string(v.Value.Bytes)}, true
	case *types.ResponseStreamMemberReturnControl:
		rc := &ReturnControl{InvocationID: aws.ToString(v.Value.InvocationId)}
		for _, input := range v.Value.InvocationInputs {
			fi, ok := input.(*types.InvocationInputMemberMemberFunctionInvocationInput)
			if !ok {
				continue
			}
			inv := FunctionInvocation{
				ActionGroup: aws.ToString(fi.Value.ActionGroup),
				Function:    aws.ToString(fi.Value.Function),
			}
			for _, p := range fi.Value.Parameters {
				inv.Parameters = append(inv.Parameters, FunctionParameter{
					Name:  aws.ToString(p.Name),
					Type:  aws.ToString(p.Type),
					Value: aws.ToString(p.Value),
				})
			}
			rc.Invocations = append(rc.Invocations, inv)
		}
		return AgentEvent{ReturnControl: rc}, true
	default:
		return AgentEvent{}, false
	}
}
