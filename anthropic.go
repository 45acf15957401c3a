package bridge

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicToolParams converts the unified catalog into the typed tool
// parameters the Anthropic API expects, for callers that drive Claude
// directly instead of going through a format adapter.
func AnthropicToolParams(tools []Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params = append(params, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.NamespacedName(),
				Description: param.NewOpt(t.Description),
				InputSchema: anthropicInputSchema(t.InputSchema),
			},
		})
	}
	return params
}

// anthropicInputSchema extracts properties and required from raw JSON schema
// bytes. Schemas that fail to parse degrade to an empty object schema rather
// than failing the conversion.
func anthropicInputSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	s := anthropic.ToolInputSchemaParam{}
	if len(raw) == 0 {
		return s
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return s
	}

	if props, ok := parsed["properties"]; ok {
		s.Properties = props
	}
	if req, ok := parsed["required"].([]any); ok {
		required := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				required = append(required, name)
			}
		}
		s.Required = required
	}
	return s
}
