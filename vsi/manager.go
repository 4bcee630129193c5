package vsi

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/internal/metrics"
)

// Registry is the mutation surface of a handler registry. Install and
// remove are the only operations per-connection state performs on it.
type Registry interface {
	InstallHandler(prefix string, h FilesystemHandler)
	RemoveHandler(prefix string)
}

// FileManager is a prefix-routed handler registry. It is safe for
// concurrent use; a handler is either fully installed or absent.
type FileManager struct {
	mu       sync.RWMutex
	handlers map[string]FilesystemHandler
	fallback FilesystemHandler
	log      zerolog.Logger

	errMu    sync.Mutex
	errClass ErrorClass
	errMsg   string
}

var _ Registry = (*FileManager)(nil)

// FileManagerOption configures a FileManager.
type FileManagerOption func(*FileManager)

// WithFallback sets the handler for paths no installed prefix matches.
func WithFallback(h FilesystemHandler) FileManagerOption {
	return func(m *FileManager) { m.fallback = h }
}

// WithManagerLogger sets the registry logger.
func WithManagerLogger(l zerolog.Logger) FileManagerOption {
	return func(m *FileManager) { m.log = l }
}

// NewFileManager returns an empty registry.
func NewFileManager(opts ...FileManagerOption) *FileManager {
	m := &FileManager{
		handlers: make(map[string]FilesystemHandler),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Default is the process-wide registry. Unprefixed paths go to the local
// disk.
var Default = newDefaultManager()

func newDefaultManager() *FileManager {
	m := NewFileManager()
	m.fallback = NewFileSystemHandler("", host.NewOSFileSystem(), WithErrorReporter(m.ReportError))
	return m
}

// InstallHandler publishes h under prefix, replacing any previous handler.
func (m *FileManager) InstallHandler(prefix string, h FilesystemHandler) {
	m.mu.Lock()
	_, replaced := m.handlers[prefix]
	m.handlers[prefix] = h
	m.mu.Unlock()

	if !replaced {
		metrics.HandlerInstalled()
	}
	m.log.Debug().Str("prefix", prefix).Bool("replaced", replaced).Msg("handler installed")
}

// RemoveHandler unpublishes the handler under prefix.
func (m *FileManager) RemoveHandler(prefix string) {
	m.mu.Lock()
	_, ok := m.handlers[prefix]
	delete(m.handlers, prefix)
	m.mu.Unlock()

	if ok {
		metrics.HandlerRemoved()
	}
	m.log.Debug().Str("prefix", prefix).Bool("found", ok).Msg("handler removed")
}

// Installed reports whether a handler is registered under exactly prefix.
func (m *FileManager) Installed(prefix string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.handlers[prefix]
	return ok
}

// Prefixes returns the installed prefixes in sorted order.
func (m *FileManager) Prefixes() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.handlers))
	for p := range m.handlers {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Handler returns the handler with the longest prefix matching path, or the
// fallback when none matches. It returns nil when there is no fallback.
func (m *FileManager) Handler(path string) FilesystemHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best string
	var found FilesystemHandler
	for p, h := range m.handlers {
		if len(p) > len(best) && strings.HasPrefix(path, p) {
			best, found = p, h
		}
	}
	if found != nil {
		return found
	}
	return m.fallback
}

func (m *FileManager) route(path string) (FilesystemHandler, error) {
	h := m.Handler(path)
	if h == nil {
		return nil, errors.Wrapf(ErrNotFound, "%q", path)
	}
	return h, nil
}

// ReportError records an error for LastError. It matches the ErrorReporter
// signature so handlers can report straight into the registry.
func (m *FileManager) ReportError(class ErrorClass, msg string) {
	m.errMu.Lock()
	m.errClass, m.errMsg = class, msg
	m.errMu.Unlock()
}

// LastError returns the most recently reported error.
func (m *FileManager) LastError() (ErrorClass, string) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.errClass, m.errMsg
}

// ResetError clears the last reported error.
func (m *FileManager) ResetError() {
	m.ReportError(ErrorNone, "")
}

// Open routes path to its handler and opens it with a C stdio mode string.
// The returned error belongs to this call alone; it is also recorded for
// LastError.
func (m *FileManager) Open(path, access string) (Handle, error) {
	h, err := m.route(path)
	if err != nil {
		return nil, err
	}
	if o, ok := h.(ErrorOpener); ok {
		fh, err := o.OpenErr(path, access)
		if err != nil {
			m.ReportError(ErrorFileError, err.Error())
			return nil, err
		}
		return fh, nil
	}

	// Handlers that only report through the hook share the slot, so their
	// message may come from a concurrent open.
	m.ResetError()
	fh := h.Open(path, access, true)
	if fh == nil {
		if _, msg := m.LastError(); msg != "" {
			return nil, errors.Wrapf(ErrOpenFailed, "%s", msg)
		}
		return nil, errors.Wrapf(ErrOpenFailed, "%q (%s)", path, access)
	}
	return fh, nil
}

// Stat routes path to its handler and stats it.
func (m *FileManager) Stat(path string) (StatBuf, error) {
	var buf StatBuf
	h, err := m.route(path)
	if err != nil {
		return buf, err
	}
	if h.Stat(path, &buf, 0) != 0 {
		return buf, errors.Wrapf(ErrStatFailed, "%q", path)
	}
	return buf, nil
}

// ReadDir lists at most maxFiles entries of a directory (all when maxFiles <= 0).
func (m *FileManager) ReadDir(path string, maxFiles int) ([]string, error) {
	h, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return h.ReadDirEx(path, maxFiles), nil
}

// SiblingFiles expands a glob pattern through the routed handler.
func (m *FileManager) SiblingFiles(path string) ([]string, error) {
	h, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return h.SiblingFiles(path), nil
}

func (m *FileManager) Mkdir(path string) error {
	return m.status(path, "mkdir", func(h FilesystemHandler) int { return h.Mkdir(path, 0o755) })
}

func (m *FileManager) Rmdir(path string) error {
	return m.status(path, "rmdir", func(h FilesystemHandler) int { return h.RmdirRecursive(path) })
}

func (m *FileManager) Unlink(path string) error {
	return m.status(path, "unlink", func(h FilesystemHandler) int { return h.Unlink(path) })
}

func (m *FileManager) status(path, op string, fn func(FilesystemHandler) int) error {
	h, err := m.route(path)
	if err != nil {
		return err
	}
	if fn(h) != 0 {
		return errors.Wrapf(ErrIOFailed, "%s %q", op, path)
	}
	return nil
}

// NewPrefix formats a routing prefix for id.
func NewPrefix(id fmt.Stringer) string {
	return fmt.Sprintf(PrefixFormat, id.String())
}
