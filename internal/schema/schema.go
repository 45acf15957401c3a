// Package schema derives MCP tool input schemas from Go struct types.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Generate produces a JSON Schema document for the Go struct type T, in the
// shape MCP servers report as a tool's inputSchema. Struct tags (json,
// jsonschema) drive field names, descriptions, and required markers.
func Generate[T any]() json.RawMessage {
	var zero T
	s := jsonschema.Reflect(&zero)
	root := extractRoot(s)

	doc := map[string]any{"type": "object"}
	if props := properties(root); props != nil {
		doc["properties"] = props
	}
	if len(root.Required) > 0 {
		doc["required"] = root.Required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}

// extractRoot resolves the root schema. invopop/jsonschema puts the actual
// type under $defs behind a $ref, so follow it to the object definition.
func extractRoot(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Ref != "" && s.Definitions != nil {
		for _, def := range s.Definitions {
			if def.Type == "object" {
				return def
			}
		}
	}
	return s
}

// properties converts the schema's ordered property map into a plain
// map[string]any for serialization.
func properties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil {
		return nil
	}
	props := make(map[string]any)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = property(pair.Value)
	}
	return props
}

// property converts a single property schema to a serializable map.
func property(s *jsonschema.Schema) map[string]any {
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}

	// Pointer fields come back as anyOf with a null branch; take the
	// non-null type.
	if len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				m["type"] = sub.Type
				break
			}
		}
	}

	if s.Properties != nil {
		m["type"] = "object"
		m["properties"] = properties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}

	if s.Items != nil {
		m["items"] = property(s.Items)
	}

	return m
}
