package host

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// State is an extension-owned value attached to a connection. QueryEnd runs
// after every query; Close runs once when the connection is torn down.
type State interface {
	QueryEnd()
	Close()
}

// Connection is one client connection with its filesystem view and its
// registered-state slots.
type Connection struct {
	id  uint64
	fs  FileSystem
	log zerolog.Logger

	mu     sync.Mutex
	states map[string]State
	order  []string
	closed bool
}

var connectionIDs atomic.Uint64

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// NewConnection opens a connection over fs.
func NewConnection(fs FileSystem, opts ...Option) *Connection {
	c := &Connection{
		id:     connectionIDs.Add(1),
		fs:     fs,
		log:    zerolog.Nop(),
		states: make(map[string]State),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Uint64("connection", c.id).Logger()
	return c
}

func (c *Connection) ID() uint64 { return c.id }

func (c *Connection) FileSystem() FileSystem { return c.fs }

func (c *Connection) Logger() *zerolog.Logger { return &c.log }

// GetOrCreateState returns the state registered under key, calling create
// to build it on first use. create runs at most once per key and connection.
func (c *Connection) GetOrCreateState(key string, create func() (State, error)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if s, ok := c.states[key]; ok {
		return s, nil
	}
	s, err := create()
	if err != nil {
		return nil, err
	}
	c.states[key] = s
	c.order = append(c.order, key)
	return s, nil
}

// LookupState returns the state registered under key, if any.
func (c *Connection) LookupState(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[key]
	return s, ok
}

// EndQuery notifies every registered state that a query finished.
func (c *Connection) EndQuery() {
	c.mu.Lock()
	states := make([]State, 0, len(c.order))
	for _, k := range c.order {
		states = append(states, c.states[k])
	}
	c.mu.Unlock()

	for _, s := range states {
		s.QueryEnd()
	}
}

// Close tears down every registered state in reverse creation order.
// Calling Close more than once is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	order := c.order
	states := c.states
	c.order = nil
	c.states = nil
	c.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		states[order[i]].Close()
	}
	c.log.Debug().Int("states", len(order)).Msg("connection closed")
	return nil
}
