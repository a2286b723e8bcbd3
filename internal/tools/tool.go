package tools

import "medtriage/internal/models"

// SubmitTriageResultName is the name of the action the model must call to report its assessment
const SubmitTriageResultName = "submit_triage_result"

// ArgType represents the JSON type of a tool argument
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
	TypeArray   ArgType = "array"
)

// Argument describes one named argument of a callable tool
type Argument struct {
	Name        string
	Type        ArgType
	Description string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Items       ArgType
}

// Descriptor describes a single callable action offered to the model
type Descriptor struct {
	Name        string
	Description string
	Arguments   []Argument
}

// AgentParameter is one parameter of a Bedrock Agent action-group function
type AgentParameter struct {
	Type        ArgType `json:"type"`
	Description string  `json:"description"`
	Required    bool    `json:"required"`
}

// AgentFunction is the Bedrock Agent action-group function schema for a descriptor
type AgentFunction struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Parameters  map[string]AgentParameter `json:"parameters"`
}

func bound(v float64) *float64 { return &v }

func severityEnum() []string {
	out := make([]string, len(models.Severities))
	for i, s := range models.Severities {
		out[i] = string(s)
	}
	return out
}

var submitTriageResult = Descriptor{
	Name: SubmitTriageResultName,
	Description: "Submit the triage assessment result. Call this with severity, confidence, " +
		"recommendations, force_high_priority, and safety_disclaimer.",
	Arguments: []Argument{
		{
			Name:        models.FieldSeverity,
			Type:        TypeString,
			Description: "WHO IITT/ESI: critical=Red/1, high=Red/2, medium=Yellow/3, low=Green/4-5",
			Enum:        severityEnum(),
		},
		{
			Name:        models.FieldConfidence,
			Type:        TypeNumber,
			Description: "Confidence 0.0-1.0. If < 0.85, set force_high_priority to true.",
			Minimum:     bound(0),
			Maximum:     bound(1),
		},
		{
			Name:        models.FieldRecommendations,
			Type:        TypeArray,
			Description: "Recommended immediate actions",
			Items:       TypeString,
		},
		{
			Name:        models.FieldForceHighPriority,
			Type:        TypeBoolean,
			Description: "True when confidence < 85%; treat as high priority.",
		},
		{
			Name:        models.FieldSafetyDisclaimer,
			Type:        TypeString,
			Description: "Required disclaimer for AI-generated medical guidance.",
		},
	},
}

// SubmitTriageResult returns the descriptor of the submit_triage_result action
func SubmitTriageResult() Descriptor {
	d := submitTriageResult
	d.Arguments = make([]Argument, len(submitTriageResult.Arguments))
	copy(d.Arguments, submitTriageResult.Arguments)
	return d
}

// ArgumentNames returns the argument names in declaration order
func (d Descriptor) ArgumentNames() []string {
	names := make([]string, len(d.Arguments))
	for i, arg := range d.Arguments {
		names[i] = arg.Name
	}
	return names
}

// JSONSchema renders the descriptor's arguments as a strict JSON schema object.
// Every argument is required and no additional properties are allowed.
func (d Descriptor) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Arguments))
	required := make([]any, 0, len(d.Arguments))
	for _, name := range d.ArgumentNames() {
		required = append(required, name)
	}

	for _, arg := range d.Arguments {
		prop := map[string]any{
			"type":        string(arg.Type),
			"description": arg.Description,
		}
		if len(arg.Enum) > 0 {
			enum := make([]any, len(arg.Enum))
			for i, v := range arg.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		if arg.Minimum != nil {
			prop["minimum"] = *arg.Minimum
		}
		if arg.Maximum != nil {
			prop["maximum"] = *arg.Maximum
		}
		if arg.Type == TypeArray {
			prop["items"] = map[string]any{"type": string(arg.Items)}
		}
		properties[arg.Name] = prop
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// AgentFunction renders the descriptor as a Bedrock Agent action-group function.
// Agent parameters are flat, so enum and range constraints move into the descriptions.
func (d Descriptor) AgentFunction() AgentFunction {
	params := make(map[string]AgentParameter, len(d.Arguments))
	for _, arg := range d.Arguments {
		desc := arg.Description
		if arg.Type == TypeArray {
			desc += " (JSON-encoded array of strings)"
		}
		params[arg.Name] = AgentParameter{
			Type:        arg.Type,
			Description: desc,
			Required:    true,
		}
	}
	return AgentFunction{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  params,
	}
}
