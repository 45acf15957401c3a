package bridge

import (
	"context"
	"sort"
	"sync"
)

// Pool is a caller-owned registry of session id → started Bridge. It replaces
// ambient global state with an explicit object that has clear creation and
// teardown: the caller constructs it, the caller shuts it down.
type Pool struct {
	opts []Option

	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewPool creates an empty Pool. The options are applied to every Bridge it
// creates.
func NewPool(opts ...Option) *Pool {
	return &Pool{
		opts:    opts,
		bridges: make(map[string]*Bridge),
	}
}

// Create builds a Bridge for the session, starts its servers, and registers
// it. An existing Bridge under the same session id is stopped and replaced
// first. Partial start failures do not discard the Bridge: the services that
// came up stay usable and the joined error reports the rest.
func (p *Pool) Create(ctx context.Context, sessionID string, configs []ServiceConfig) (*Bridge, error) {
	b, err := New(configs, p.opts...)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	old := p.bridges[sessionID]
	delete(p.bridges, sessionID)
	p.mu.Unlock()
	if old != nil {
		old.StopServers(ctx)
	}

	startErr := b.StartServers(ctx)

	p.mu.Lock()
	p.bridges[sessionID] = b
	p.mu.Unlock()
	return b, startErr
}

// Get returns the Bridge for a session, if one exists.
func (p *Pool) Get(sessionID string) (*Bridge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bridges[sessionID]
	return b, ok
}

// Dispose stops and removes the session's Bridge. It reports whether a Bridge
// existed.
func (p *Pool) Dispose(ctx context.Context, sessionID string) bool {
	p.mu.Lock()
	b, ok := p.bridges[sessionID]
	delete(p.bridges, sessionID)
	p.mu.Unlock()
	if ok {
		b.StopServers(ctx)
	}
	return ok
}

// Sessions returns the registered session ids, sorted.
func (p *Pool) Sessions() []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.bridges))
	for id := range p.bridges {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Shutdown stops every Bridge and empties the pool.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	bridges := p.bridges
	p.bridges = make(map[string]*Bridge)
	p.mu.Unlock()

	for _, b := range bridges {
		b.StopServers(ctx)
	}
}
