package bridge

import (
	"encoding/json"
	"fmt"
)

// Tool describes a tool discovered from an MCP server. Tools are immutable
// once discovered; re-discovery only happens when a Connection restarts.
type Tool struct {
	// Name is the tool's name as reported by the server.
	Name string

	// Description is a human-readable description of the tool.
	Description string

	// InputSchema is the raw JSON schema for the tool's input.
	InputSchema json.RawMessage

	// ServiceName is the service that owns this tool.
	ServiceName string
}

// NamespacedName returns the collision-free form {service}__{tool}.
func (t Tool) NamespacedName() string {
	return t.ServiceName + "__" + t.Name
}

// ToolResult is the outcome of a tool invocation. Exactly one of Content and
// Error is populated: Success implies Content is set and Error is empty.
type ToolResult struct {
	Success bool
	Content json.RawMessage
	Error   string
}

// errorResult builds a failed ToolResult from a formatted message.
func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// textContent wraps plain text in the MCP content-block shape so results from
// in-process tools look the same as results from subprocess servers.
func textContent(text string) json.RawMessage {
	blocks := []map[string]string{{"type": "text", "text": text}}
	raw, _ := json.Marshal(blocks)
	return raw
}
