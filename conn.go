package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// maxLineBytes bounds a single JSON-RPC line read from a server's stdout.
const maxLineBytes = 10 << 20

type connState int

const (
	stateIdle connState = iota
	stateStarting
	stateRunning
	stateStopping
	stateStopped
)

// request is an outgoing JSON-RPC 2.0 message. Notifications carry no ID and
// the omitempty tag drops the field entirely.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is an incoming JSON-RPC 2.0 message.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *responseError  `json:"error"`
}

type responseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Connection manages the full protocol lifecycle of one MCP server
// subprocess: spawning, the initialize handshake, tool discovery, correlated
// request/response traffic, and shutdown.
//
// Requests on one Connection may be answered out of order; correlation is
// strictly by request id. A Connection is created by its Bridge and must not
// be shared across Bridges.
type Connection struct {
	cfg  ServiceConfig
	opts *options

	mu      sync.Mutex
	state   connState
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	nextID  int64
	pending map[int64]chan *response
	tools   []Tool

	// writeMu serializes writes to the subprocess's stdin so concurrent
	// requests cannot interleave partial lines.
	writeMu  sync.Mutex
	readDone chan struct{}
}

func newConnection(cfg ServiceConfig, opts *options) *Connection {
	return &Connection{cfg: cfg, opts: opts}
}

// Name returns the configured service name.
func (c *Connection) Name() string { return c.cfg.Name }

// IsRunning reports whether the subprocess is up and the handshake completed.
func (c *Connection) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// Tools returns the catalog discovered during the last successful Start.
func (c *Connection) Tools() []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tools := make([]Tool, len(c.tools))
	copy(tools, c.tools)
	return tools
}

// Start spawns the subprocess, begins the stdout read loop, performs the
// initialize handshake, and discovers tools. It is a no-op if the Connection
// is already running. On any failure the subprocess is torn down and the
// Connection is left stopped.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateRunning || c.state == stateStarting {
		c.mu.Unlock()
		return nil
	}
	c.state = stateStarting
	c.mu.Unlock()

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Env = mergedEnv(c.cfg.Env)
	if c.cfg.Dir != "" {
		cmd.Dir = c.cfg.Dir
	}
	// Stderr is intentionally discarded: servers log there freely and an
	// unread pipe would eventually block the child.

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.setState(stateStopped)
		return fmt.Errorf("bridge: start %s: %w", c.cfg.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.setState(stateStopped)
		return fmt.Errorf("bridge: start %s: %w", c.cfg.Name, err)
	}
	if err := cmd.Start(); err != nil {
		c.setState(stateStopped)
		return fmt.Errorf("bridge: start %s: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.stdin = stdin
	c.pending = make(map[int64]chan *response)
	c.readDone = make(chan struct{})
	readDone := c.readDone
	c.mu.Unlock()

	// The read loop must be running before the first request is written so
	// no response can be missed.
	go c.readLoop(stdout, readDone)

	if err := c.handshake(ctx); err != nil {
		c.teardown()
		return fmt.Errorf("bridge: start %s: %w", c.cfg.Name, err)
	}

	// The read loop may have observed process death during the handshake and
	// moved the Connection to stopped; only a still-starting Connection may
	// become running.
	c.mu.Lock()
	started := c.state == stateStarting
	if started {
		c.state = stateRunning
	}
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("bridge: start %s: %w", c.cfg.Name, ErrConnectionClosed)
	}

	c.opts.logger.Info("started MCP server", "service", c.cfg.Name, "tools", len(c.Tools()))
	return nil
}

// Stop terminates the subprocess: SIGTERM, a bounded grace period, then
// SIGKILL. Every request still pending is failed with ErrConnectionClosed
// before the pending map is cleared. Stop is idempotent.
func (c *Connection) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateRunning && c.state != stateStarting {
		c.mu.Unlock()
		return nil
	}
	c.state = stateStopping
	cmd := c.cmd
	stdin := c.stdin
	readDone := c.readDone
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		c.setState(stateStopped)
		return nil
	}

	c.failPending()

	// Closing stdin lets well-behaved servers exit on EOF before the signal
	// lands.
	_ = stdin.Close()
	_ = cmd.Process.Signal(syscall.SIGTERM)

	grace := time.NewTimer(c.opts.stopGrace)
	defer grace.Stop()
	select {
	case <-readDone:
	case <-grace.C:
		_ = cmd.Process.Kill()
		<-readDone
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-readDone
	}
	_ = cmd.Wait()

	c.setState(stateStopped)
	c.opts.logger.Info("stopped MCP server", "service", c.cfg.Name)
	return nil
}

// CallTool invokes a tool on this server. Transport and protocol failures are
// converted into a failed ToolResult; this method never returns a Go error so
// a calling agent loop can keep running.
func (c *Connection) CallTool(ctx context.Context, name string, arguments map[string]any) ToolResult {
	raw, err := c.sendRequest(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}

	var result struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return errorResult("invalid tools/call result from %s: %s", c.cfg.Name, err)
	}
	return ToolResult{Success: true, Content: result.Content}
}

// sendRequest writes one JSON-RPC request and blocks until the id-matching
// response arrives, the request timeout elapses, or the context is cancelled.
// Request ids are monotonically increasing and never reused; a timed-out id's
// pending slot is freed immediately.
func (c *Connection) sendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != stateStarting && c.state != stateRunning {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, c.cfg.Name)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *response, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("bridge: marshal %s: %w", method, err)
	}

	if err := c.writeLine(stdin, payload); err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("bridge: write %s: %w", method, err)
	}

	timeout := time.NewTimer(c.opts.requestTimeout)
	defer timeout.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrConnectionClosed, c.cfg.Name)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("bridge: %s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-timeout.C:
		c.removePending(id)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.opts.requestTimeout)
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

// notify writes a JSON-RPC notification. No id is allocated and no response
// is expected.
func (c *Connection) notify(method string) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()

	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method})
	if err != nil {
		return err
	}
	return c.writeLine(stdin, payload)
}

func (c *Connection) writeLine(w io.Writer, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := w.Write(append(payload, '\n'))
	return err
}

// handshake performs initialize → notifications/initialized → tools/list.
func (c *Connection) handshake(ctx context.Context) error {
	_, err := c.sendRequest(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    c.opts.clientName,
			"version": c.opts.clientVersion,
		},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := c.notify("notifications/initialized"); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	raw, err := c.sendRequest(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	var listed struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	tools := make([]Tool, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			ServiceName: c.cfg.Name,
		})
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
	return nil
}

// readLoop reads one line at a time from the subprocess's stdout and resolves
// the matching pending request. Lines that fail to parse are logged and
// skipped; responses with unknown ids are dropped. The loop ends when stdout
// closes, which is how unexpected process death is detected.
func (c *Connection) readLoop(stdout io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.opts.logger.Warn("discarding malformed JSON line",
				"service", c.cfg.Name, "error", err)
			continue
		}
		if resp.ID == 0 {
			// Server-initiated notification; nothing to correlate.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		ch <- &resp
	}

	c.mu.Lock()
	unexpected := c.state == stateRunning || c.state == stateStarting
	cmd := c.cmd
	if unexpected {
		c.state = stateStopped
	}
	c.mu.Unlock()

	if unexpected {
		c.failPending()
		c.opts.logger.Warn("MCP server exited unexpectedly", "service", c.cfg.Name)
		go func() { _ = cmd.Wait() }()
	}
}

// failPending closes every outstanding completion channel so waiters observe
// ErrConnectionClosed instead of blocking forever.
func (c *Connection) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan *response)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

func (c *Connection) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Connection) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// teardown kills the subprocess after a failed handshake and marks the
// Connection stopped.
func (c *Connection) teardown() {
	c.mu.Lock()
	cmd := c.cmd
	stdin := c.stdin
	readDone := c.readDone
	c.state = stateStopping
	c.mu.Unlock()

	c.failPending()
	_ = stdin.Close()
	_ = cmd.Process.Kill()
	<-readDone
	_ = cmd.Wait()
	c.setState(stateStopped)
}

// mergedEnv overlays service-specific variables on the parent environment.
// exec.Cmd uses the last occurrence of a duplicated key, so service values
// win on conflict.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
