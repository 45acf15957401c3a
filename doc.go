// Package bridge connects AI providers without native MCP support to external
// MCP tool servers. It spawns each configured server as a subprocess, speaks
// newline-delimited JSON-RPC 2.0 over the subprocess's stdin/stdout, discovers
// the tools each server exposes, and multiplexes tool calls across all of them
// through a single routing table.
//
// Typical usage:
//
//	configs, _ := bridge.LoadConfig(".mcp.json")
//	b, _ := bridge.New(configs)
//	if err := b.StartServers(ctx); err != nil {
//	    // partial failures: some servers may still be up
//	}
//	defer b.StopServers(ctx)
//
//	result := b.CallTool(ctx, "context7__resolve", map[string]any{"query": "..."})
//
// Tool names are registered twice: once bare and once namespaced as
// {server}__{tool}. The namespaced form is always unambiguous; when two
// servers expose the same bare name, the later-configured server wins the
// bare alias.
package bridge
