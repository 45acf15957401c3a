package bridge

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
)

// TestHelperProcess is not a real test: when re-executed with
// GO_HELPER_PROCESS=1 it runs a fake MCP server over stdio so Connection and
// Bridge tests exercise the real spawn path. Behavior is driven by MCP_FAKE_*
// environment variables.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_HELPER_PROCESS") != "1" {
		return
	}
	runFakeServer()
	os.Exit(0)
}

// fakeServerConfig builds a ServiceConfig that re-executes the test binary as
// a fake MCP server.
func fakeServerConfig(name string, extraEnv map[string]string) ServiceConfig {
	env := map[string]string{
		"GO_HELPER_PROCESS": "1",
		"MCP_FAKE_NAME":     name,
	}
	for k, v := range extraEnv {
		env[k] = v
	}
	return ServiceConfig{
		Name:    name,
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess"},
		Env:     env,
	}
}

type fakeRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type fakeCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func runFakeServer() {
	out := bufio.NewWriter(os.Stdout)
	name := os.Getenv("MCP_FAKE_NAME")
	toolsJSON := os.Getenv("MCP_FAKE_TOOLS")
	reorder := os.Getenv("MCP_FAKE_REORDER") == "1"
	malformed := os.Getenv("MCP_FAKE_MALFORMED") == "1"
	dropFirstCall := os.Getenv("MCP_FAKE_DROP_FIRST_CALL") == "1"
	failCalls := os.Getenv("MCP_FAKE_FAIL_CALLS") == "1"
	exitOnCall := os.Getenv("MCP_FAKE_EXIT_ON_CALL") == "1"

	if toolsJSON == "" {
		toolsJSON = `[{"name":"echo","description":"Echo arguments back","inputSchema":{"type":"object"}}]`
	}

	writeLine := func(v any) {
		raw, _ := json.Marshal(v)
		out.Write(raw)
		out.WriteByte('\n')
		out.Flush()
	}

	respond := func(req fakeRequest) {
		if malformed {
			out.WriteString("}{ not json at all\n")
			out.Flush()
		}
		switch req.Method {
		case "initialize":
			writeLine(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result": map[string]any{
					"protocolVersion": "2024-11-05",
					"capabilities":    map[string]any{},
					"serverInfo":      map[string]string{"name": name, "version": "0.0.1"},
				},
			})
		case "tools/list":
			writeLine(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  map[string]any{"tools": json.RawMessage(toolsJSON)},
			})
		case "tools/call":
			if failCalls {
				writeLine(map[string]any{
					"jsonrpc": "2.0",
					"id":      req.ID,
					"error":   map[string]any{"code": -32000, "message": "tool exploded"},
				})
				return
			}
			var params fakeCallParams
			_ = json.Unmarshal(req.Params, &params)
			text := name + ":" + params.Name + ":" + string(params.Arguments)
			writeLine(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result": map[string]any{
					"content": []map[string]string{{"type": "text", "text": text}},
				},
			})
		default:
			writeLine(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found: " + req.Method},
			})
		}
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 10<<20)

	var held []fakeRequest // buffered calls when reordering
	callsSeen := 0

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		var req fakeRequest
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		if req.ID == 0 {
			continue // notification
		}
		if req.Method == "tools/call" {
			callsSeen++
			if exitOnCall {
				os.Exit(0)
			}
			if dropFirstCall && callsSeen == 1 {
				continue
			}
			if reorder {
				held = append(held, req)
				if len(held) == 2 {
					respond(held[1])
					respond(held[0])
					held = nil
				}
				continue
			}
		}
		respond(req)
	}
}

// contentText extracts the first text block from a ToolResult's content.
func contentText(t *testing.T, result ToolResult) string {
	t.Helper()
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(result.Content, &blocks); err != nil {
		t.Fatalf("unexpected content shape: %s (%s)", err, result.Content)
	}
	if len(blocks) == 0 {
		t.Fatal("empty content")
	}
	return blocks[0].Text
}
