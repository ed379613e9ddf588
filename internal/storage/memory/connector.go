// Package memory provides a scripted in-memory storage.Connector used by
// tests and the fixtures mode of the command line tool.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
)

// Handler produces the result for a query routed to it.
type Handler func(query string) (*table.Table, error)

type route struct {
	match   string
	handler Handler
}

// Connector routes queries to handlers by substring match.
// Routes are tried in registration order; the first match wins.
type Connector struct {
	name string

	mu         sync.Mutex
	routes     []route
	connectErr error
	connected  bool
	connects   int
	queries    []string
}

// Compile-time interface check.
var _ storage.Connector = (*Connector)(nil)

// NewConnector creates a connector reporting name.
func NewConnector(name string) *Connector {
	return &Connector{name: name}
}

// On registers h for queries containing match.
func (c *Connector) On(match string, h Handler) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route{match: match, handler: h})
	return c
}

// FailConnect makes every Connect call fail with err.
func (c *Connector) FailConnect(err error) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
	return c
}

// Name returns the configured backend name.
func (c *Connector) Name() string { return c.name }

// Connect opens a fake session.
func (c *Connector) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrConnection, c.name, c.connectErr)
	}
	c.connected = true
	c.connects++
	return nil
}

// Disconnect closes the fake session.
func (c *Connector) Disconnect(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// ExecuteQuery records query and dispatches it to the first matching handler.
func (c *Connector) ExecuteQuery(_ context.Context, query string, _ ...any) (*table.Table, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, storage.ErrNotConnected
	}
	c.queries = append(c.queries, query)
	var h Handler
	for _, r := range c.routes {
		if strings.Contains(query, r.match) {
			h = r.handler
			break
		}
	}
	c.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("%w: %s: no handler for query", storage.ErrQuery, c.name)
	}
	t, err := h(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrQuery, c.name, err)
	}
	return t.Clone(), nil
}

// Connected reports whether a session is open.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connects returns how many sessions have been opened.
func (c *Connector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Queries returns every query executed so far.
func (c *Connector) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

var (
	inClause = regexp.MustCompile(`(?is)\bIN\s*\(([^)]*)\)`)
	quoted   = regexp.MustCompile(`'([^']*)'`)
)

// InList extracts the quoted literals of the first IN (...) clause of query.
func InList(query string) []string {
	m := inClause.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	var out []string
	for _, q := range quoted.FindAllStringSubmatch(m[1], -1) {
		out = append(out, q[1])
	}
	return out
}

// Quoted returns every single-quoted literal in query, in order.
func Quoted(query string) []string {
	var out []string
	for _, q := range quoted.FindAllStringSubmatch(query, -1) {
		out = append(out, q[1])
	}
	return out
}
