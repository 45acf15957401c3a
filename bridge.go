package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Bridge owns a pool of Connections keyed by service name, drives their
// lifecycle, and exposes unified tool discovery and invocation across all of
// them. Entries with Kind "http" never get a Connection; they are handled by
// a separate transport.
type Bridge struct {
	opts  options
	order []string // service + local-service names in configuration order
	conns map[string]*Connection

	locals map[string]*LocalService

	// routes maps every callable name (bare and namespaced) to the owning
	// service. It is rebuilt wholesale on each StartServers call, never
	// mutated incrementally.
	routesMu sync.RWMutex
	routes   map[string]string
}

// New creates a Bridge from the given service configurations. Configuration
// order is significant: it decides catalog ordering and which service wins a
// bare-name collision in the routing table.
func New(configs []ServiceConfig, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		opts:   resolveOptions(opts),
		conns:  make(map[string]*Connection),
		locals: make(map[string]*LocalService),
		routes: make(map[string]string),
	}

	for _, cfg := range configs {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		if cfg.Kind == KindHTTP {
			// HTTP servers don't need the bridge.
			continue
		}
		if _, exists := b.conns[cfg.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate service name %q", ErrInvalidConfig, cfg.Name)
		}
		b.conns[cfg.Name] = newConnection(cfg, &b.opts)
		b.order = append(b.order, cfg.Name)
	}
	return b, nil
}

// AddLocal registers an in-process service. Its tools join the catalog and
// routing table on the next StartServers call, with the same namespacing and
// collision rules as subprocess services.
func (b *Bridge) AddLocal(svc *LocalService) error {
	if svc.Name() == "" {
		return fmt.Errorf("%w: local service name is required", ErrInvalidConfig)
	}
	if _, exists := b.conns[svc.Name()]; exists {
		return fmt.Errorf("%w: duplicate service name %q", ErrInvalidConfig, svc.Name())
	}
	if _, exists := b.locals[svc.Name()]; exists {
		return fmt.Errorf("%w: duplicate service name %q", ErrInvalidConfig, svc.Name())
	}
	b.locals[svc.Name()] = svc
	b.order = append(b.order, svc.Name())
	return nil
}

// StartServers starts every Connection concurrently. A failure in one service
// is collected and does not abort the others; the returned error joins all
// per-service failures (nil when every service started). Afterwards the
// routing table is rebuilt from services currently running; a service that
// failed to start contributes no tools.
func (b *Bridge) StartServers(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(b.conns))

	for _, name := range b.order {
		conn, ok := b.conns[name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Start(ctx); err != nil {
				b.opts.logger.Error("failed to start MCP server",
					"service", conn.Name(), "error", err)
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	b.rebuildRoutes()

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StopServers stops every Connection concurrently, independent of individual
// failures. It is safe to call more than once.
func (b *Bridge) StopServers(ctx context.Context) {
	var wg sync.WaitGroup
	for _, conn := range b.conns {
		conn := conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Stop(ctx)
		}()
	}
	wg.Wait()
}

// rebuildRoutes replaces the routing table with a fresh one built from the
// catalogs of running services, in configuration order. Each tool gets two
// entries: the bare name (later services win collisions) and the namespaced
// {service}__{tool} form, which is always unambiguous.
func (b *Bridge) rebuildRoutes() {
	routes := make(map[string]string)
	for _, name := range b.order {
		for _, tool := range b.serviceTools(name) {
			routes[tool.Name] = name
			routes[tool.NamespacedName()] = name
		}
	}

	b.routesMu.Lock()
	b.routes = routes
	b.routesMu.Unlock()
}

// serviceTools returns the filtered catalog of one service, or nil if the
// service is not currently able to serve calls.
func (b *Bridge) serviceTools(name string) []Tool {
	var tools []Tool
	if conn, ok := b.conns[name]; ok {
		if !conn.IsRunning() {
			return nil
		}
		tools = conn.Tools()
	} else if local, ok := b.locals[name]; ok {
		tools = local.Tools()
	}

	if len(b.opts.filter) == 0 {
		return tools
	}
	filtered := tools[:0]
	for _, t := range tools {
		if filterAllows(b.opts.filter, t) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// AllTools returns the union of every running service's catalog, in
// configuration order.
func (b *Bridge) AllTools() []Tool {
	var all []Tool
	for _, name := range b.order {
		all = append(all, b.serviceTools(name)...)
	}
	return all
}

// ToolsForProvider returns the catalog converted to the wire shape the given
// consumer expects. Unknown consumer ids fall back to the canonical unified
// shape.
func (b *Bridge) ToolsForProvider(consumerID string) []map[string]any {
	return FormatTools(consumerID, b.AllTools())
}

// HasTool reports whether name (bare or namespaced) resolves to a service.
func (b *Bridge) HasTool(name string) bool {
	b.routesMu.RLock()
	defer b.routesMu.RUnlock()
	_, ok := b.routes[name]
	return ok
}

// ToolNames returns every callable name in the routing table, sorted.
func (b *Bridge) ToolNames() []string {
	b.routesMu.RLock()
	names := make([]string, 0, len(b.routes))
	for name := range b.routes {
		names = append(names, name)
	}
	b.routesMu.RUnlock()
	sort.Strings(names)
	return names
}

// CallTool resolves name through the routing table and forwards the call to
// the owning service, stripping the namespace prefix first. Failures of every
// kind (unknown tool, stopped service, transport error, remote error) come
// back as a failed ToolResult, never as a panic or error.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) ToolResult {
	b.routesMu.RLock()
	serviceName, ok := b.routes[name]
	b.routesMu.RUnlock()
	if !ok {
		return errorResult("Unknown tool: %s", name)
	}

	bare := strings.TrimPrefix(name, serviceName+"__")

	if local, ok := b.locals[serviceName]; ok {
		return local.call(ctx, bare, arguments)
	}

	conn := b.conns[serviceName]
	if conn == nil || !conn.IsRunning() {
		return errorResult("%s is not running", serviceName)
	}
	return conn.CallTool(ctx, bare, arguments)
}
