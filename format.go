package bridge

import (
	"encoding/json"
	"sync"
)

// FormatFunc converts the unified tool catalog into a consumer-specific wire
// shape. Implementations must be pure: no Bridge or Connection state.
type FormatFunc func(tools []Tool) []map[string]any

// Consumer ids with built-in format adapters.
const (
	FormatGemini = "gemini"
	FormatOpenAI = "openai"
)

var (
	formatsMu sync.RWMutex
	formats   = map[string]FormatFunc{
		FormatGemini: formatFunctionDeclarations,
		FormatOpenAI: formatTypedFunctions,
	}
)

// RegisterFormat installs a format adapter for a consumer id, replacing any
// existing adapter with the same id. New consumer shapes plug in here without
// touching Bridge or Connection.
func RegisterFormat(consumerID string, fn FormatFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[consumerID] = fn
}

// FormatTools converts tools for the given consumer. Unknown consumer ids
// fall back to the canonical unified shape.
func FormatTools(consumerID string, tools []Tool) []map[string]any {
	formatsMu.RLock()
	fn, ok := formats[consumerID]
	formatsMu.RUnlock()
	if !ok {
		fn = formatUnified
	}
	return fn(tools)
}

// formatFunctionDeclarations produces the function-declaration group shape:
// a single element wrapping every tool.
func formatFunctionDeclarations(tools []Tool) []map[string]any {
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, map[string]any{
			"name":        t.NamespacedName(),
			"description": t.Description,
			"parameters":  schemaOrDefault(t.InputSchema),
		})
	}
	return []map[string]any{{"function_declarations": decls}}
}

// formatTypedFunctions produces the typed function-call shape: one element
// per tool.
func formatTypedFunctions(tools []Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.NamespacedName(),
				"description": t.Description,
				"parameters":  schemaOrDefault(t.InputSchema),
			},
		})
	}
	return out
}

// formatUnified is the canonical provider-neutral shape.
func formatUnified(tools []Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"name":         t.NamespacedName(),
			"description":  t.Description,
			"input_schema": schemaOrDefault(t.InputSchema),
		})
	}
	return out
}

func schemaOrDefault(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}
