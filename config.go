package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ServiceKind identifies how a configured MCP server is reached.
type ServiceKind string

const (
	// KindProcess is a subprocess speaking JSON-RPC over stdin/stdout.
	KindProcess ServiceKind = "process"

	// KindHTTP marks servers reached over HTTP. The bridge never spawns a
	// Connection for these; they are handled by a separate transport.
	KindHTTP ServiceKind = "http"
)

// ServiceConfig describes one MCP server to bridge.
type ServiceConfig struct {
	// Name identifies the service; it must be unique within a Bridge and is
	// used as the namespace component of tool names.
	Name string

	// Command is the executable to spawn.
	Command string

	// Args are command-line arguments for the subprocess.
	Args []string

	// Env are extra environment variables merged over the parent process
	// environment. Service values win on key conflict.
	Env map[string]string

	// Dir is the working directory for the subprocess. Empty inherits the
	// parent's working directory.
	Dir string

	// Kind selects the transport. Empty defaults to KindProcess.
	Kind ServiceKind
}

func (c ServiceConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}
	if c.Kind != KindHTTP && c.Command == "" {
		return fmt.Errorf("%w: service %q requires a command", ErrInvalidConfig, c.Name)
	}
	return nil
}

// serviceEntry is the on-disk shape of one server in an .mcp.json document.
type serviceEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Type    string            `json:"type,omitempty"`
}

// LoadConfig reads an .mcp.json-shaped document:
//
//	{"mcpServers": {"context7": {"command": "npx", "args": ["-y", "@upstash/context7-mcp"]}}}
//
// Document order is preserved so routing-table collision resolution is
// deterministic across runs.
func LoadConfig(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses an .mcp.json document from memory. See LoadConfig.
func ParseConfig(data []byte) ([]ServiceConfig, error) {
	var doc struct {
		MCPServers json.RawMessage `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if len(doc.MCPServers) == 0 {
		return nil, nil
	}
	return parseServers(doc.MCPServers)
}

// parseServers walks the mcpServers object token by token. encoding/json maps
// do not preserve key order, and configuration order decides which service
// wins a bare-name collision, so the object is decoded manually.
func parseServers(raw json.RawMessage) ([]ServiceConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: mcpServers must be an object", ErrInvalidConfig)
	}

	var configs []ServiceConfig
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}
		name := keyTok.(string)

		var entry serviceEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("%w: service %q: %s", ErrInvalidConfig, name, err)
		}

		kind := KindProcess
		if entry.Type == string(KindHTTP) {
			kind = KindHTTP
		}
		configs = append(configs, ServiceConfig{
			Name:    name,
			Command: entry.Command,
			Args:    entry.Args,
			Env:     entry.Env,
			Dir:     entry.Cwd,
			Kind:    kind,
		})
	}
	return configs, nil
}

// LoadConfigGlob loads every config file matching a doublestar pattern
// (e.g. "~/.config/bridge/conf.d/**/*.json") and merges the results.
// Files are visited in sorted path order; a service defined in a later file
// replaces an earlier definition of the same name, keeping the later file's
// position in the ordering.
func LoadConfigGlob(pattern string) ([]ServiceConfig, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad glob %q: %s", ErrInvalidConfig, pattern, err)
	}
	sort.Strings(paths)

	var merged []ServiceConfig
	for _, p := range paths {
		configs, err := LoadConfig(p)
		if err != nil {
			return nil, err
		}
		for _, cfg := range configs {
			merged = replaceOrAppend(merged, cfg)
		}
	}
	return merged, nil
}

func replaceOrAppend(configs []ServiceConfig, cfg ServiceConfig) []ServiceConfig {
	for i, existing := range configs {
		if existing.Name == cfg.Name {
			return append(append(configs[:i:i], configs[i+1:]...), cfg)
		}
	}
	return append(configs, cfg)
}
