package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/armatrix/mcp-bridge-go/internal/schema"
)

// LocalService is an in-process capability service that wraps Go functions as
// tools. Unlike subprocess servers there is no process, no JSON-RPC, and no
// transport, but registered on a Bridge its tools share the same catalog,
// namespacing, and routing rules.
//
//	svc := bridge.NewLocalService("utils")
//	bridge.AddTool(svc, "greet", "Greet someone", func(ctx context.Context, in GreetInput) (string, error) {
//	    return "Hello, " + in.Name, nil
//	})
//	b.AddLocal(svc)
type LocalService struct {
	name  string
	tools []localTool
}

type localTool struct {
	name        string
	description string
	inputSchema json.RawMessage
	handler     func(ctx context.Context, input json.RawMessage) (string, error)
}

// NewLocalService creates an empty in-process service with the given name.
// The name is the namespace component of its tool names ({name}__{tool}).
func NewLocalService(name string) *LocalService {
	return &LocalService{name: name}
}

// Name returns the service name.
func (s *LocalService) Name() string { return s.name }

// AddTool registers a typed Go function as a tool. The input type T is used
// for automatic JSON Schema generation.
func AddTool[T any](s *LocalService, name, description string, handler func(ctx context.Context, input T) (string, error)) {
	s.tools = append(s.tools, localTool{
		name:        name,
		description: description,
		inputSchema: schema.Generate[T](),
		handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var input T
			if err := json.Unmarshal(raw, &input); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			return handler(ctx, input)
		},
	})
}

// Tools returns the service's catalog, stamped with the owning service name.
func (s *LocalService) Tools() []Tool {
	tools := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, Tool{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.inputSchema,
			ServiceName: s.name,
		})
	}
	return tools
}

// call dispatches a tool invocation directly to the registered handler. The
// result is wrapped in the MCP content-block shape so local and subprocess
// results are indistinguishable to callers.
func (s *LocalService) call(ctx context.Context, name string, arguments map[string]any) ToolResult {
	for _, t := range s.tools {
		if t.name != name {
			continue
		}
		raw, err := json.Marshal(arguments)
		if err != nil {
			return errorResult("invalid arguments for %s: %s", name, err)
		}
		text, err := t.handler(ctx, raw)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}
		}
		return ToolResult{Success: true, Content: textContent(text)}
	}
	return errorResult("Unknown tool: %s", name)
}
