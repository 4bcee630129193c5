package vsi

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tingold/geoblob/host"
)

// StateKey is the connection state slot owned by this package.
const StateKey = "vsi"

// ClientState ties one connection's filesystem to a registry under a
// random prefix. It is created lazily by GetOrCreate and torn down by the
// connection exactly once.
type ClientState struct {
	prefix   string
	handler  *FileSystemHandler
	registry Registry
	log      zerolog.Logger
	closed   bool
}

var _ host.State = (*ClientState)(nil)

// GetOrCreate returns the connection's state, creating it and installing its
// handler into registry on first use.
func GetOrCreate(conn *host.Connection, registry Registry) (*ClientState, error) {
	s, err := conn.GetOrCreateState(StateKey, func() (host.State, error) {
		return newClientState(conn, registry)
	})
	if err != nil {
		return nil, err
	}
	cs, ok := s.(*ClientState)
	if !ok {
		return nil, errors.AssertionFailedf("vsi: state slot %q holds %T", StateKey, s)
	}
	return cs, nil
}

func newClientState(conn *host.Connection, registry Registry) (*ClientState, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "vsi: generate prefix")
	}
	prefix := NewPrefix(id)
	log := conn.Logger().With().Str("prefix", prefix).Logger()

	opts := []HandlerOption{WithLogger(log)}
	if r, ok := registry.(interface{ ReportError(ErrorClass, string) }); ok {
		opts = append(opts, WithErrorReporter(r.ReportError))
	}
	s := &ClientState{
		prefix:   prefix,
		handler:  NewFileSystemHandler(prefix, conn.FileSystem(), opts...),
		registry: registry,
		log:      log,
	}
	registry.InstallHandler(prefix, s.handler)
	return s, nil
}

// Prefix returns the routing prefix, e.g. "/vsiduckdb-<uuid>/".
func (s *ClientState) Prefix() string { return s.prefix }

// Path returns path as seen through this connection's prefix.
func (s *ClientState) Path(path string) string { return s.prefix + path }

// Handler returns the installed handler.
func (s *ClientState) Handler() *FileSystemHandler { return s.handler }

func (s *ClientState) QueryEnd() {}

// Close removes the handler from the registry and releases it. A second
// call is a lifecycle bug and panics.
func (s *ClientState) Close() {
	if s.closed {
		panic(errors.AssertionFailedf("vsi: state for %s closed twice", s.prefix))
	}
	s.closed = true
	s.registry.RemoveHandler(s.prefix)
	s.handler = nil
	s.log.Debug().Msg("client state closed")
}
