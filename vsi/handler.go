package vsi

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/internal/metrics"
)

// FilesystemHandler is the interface a registry routes prefixed paths to.
// Failures are signalled through return values (nil, -1) and never through
// panics or Go errors. Nil string slices stand for an empty list.
type FilesystemHandler interface {
	Open(path, access string, setError bool) Handle
	Stat(path string, buf *StatBuf, flags int) int
	Mkdir(path string, mode os.FileMode) int
	Rmdir(path string) int
	RmdirRecursive(path string) int
	ReadDirEx(path string, maxFiles int) []string
	SiblingFiles(path string) []string
	HasOptimizedReadMultiRange(path string) bool
	Unlink(path string) int
}

// FileSystemHandler serves every path under one prefix from a host
// filesystem.
type FileSystemHandler struct {
	prefix string
	fs     host.FileSystem
	log    zerolog.Logger
	report ErrorReporter
}

// ErrorOpener is implemented by handlers that can return open failures
// directly. FileManager.Open prefers it over the shared error slot.
type ErrorOpener interface {
	OpenErr(path, access string) (Handle, error)
}

var (
	_ FilesystemHandler = (*FileSystemHandler)(nil)
	_ ErrorOpener       = (*FileSystemHandler)(nil)
)

// HandlerOption configures a FileSystemHandler.
type HandlerOption func(*FileSystemHandler)

// WithLogger sets the handler logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *FileSystemHandler) { h.log = l }
}

// WithErrorReporter sets the hook used when Open is asked to signal errors.
func WithErrorReporter(r ErrorReporter) HandlerOption {
	return func(h *FileSystemHandler) { h.report = r }
}

// NewFileSystemHandler returns a handler for paths beginning with prefix.
func NewFileSystemHandler(prefix string, fs host.FileSystem, opts ...HandlerOption) *FileSystemHandler {
	h := &FileSystemHandler{prefix: prefix, fs: fs, log: zerolog.Nop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Prefix returns the routing prefix the handler strips.
func (h *FileSystemHandler) Prefix() string { return h.prefix }

// stripPrefix removes exactly len(prefix) leading bytes. A path carrying a
// different prefix is passed through untouched, so the host lookup fails
// with not-found instead of resolving a mangled path.
func stripPrefix(prefix, path string) string {
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	return path[len(prefix):]
}

func (h *FileSystemHandler) strip(path string) string {
	return stripPrefix(h.prefix, path)
}

func (h *FileSystemHandler) Open(path, access string, setError bool) Handle {
	fh, err := h.OpenErr(path, access)
	if err != nil {
		if setError && h.report != nil {
			h.report(ErrorFileError, err.Error())
		}
		return nil
	}
	return fh
}

// OpenErr opens path like Open but returns the failure to the caller
// instead of reporting it.
func (h *FileSystemHandler) OpenErr(path, access string) (Handle, error) {
	name := h.strip(path)
	flags := ParseAccessMode(access)

	f, err := h.fs.OpenFile(name, flags)
	if err != nil {
		metrics.ObserveOpen(false)
		h.log.Debug().Err(err).Str("path", name).Str("access", access).Msg("open failed")
		return nil, errors.Mark(errors.Wrapf(err, "Failed to open file %s", name), ErrOpenFailed)
	}
	metrics.ObserveOpen(true)
	return NewFileHandle(f, h.log), nil
}

// Stat fills buf for path. buf is zeroed first; on failure it stays zeroed
// and -1 is returned. flags are accepted for interface compatibility.
func (h *FileSystemHandler) Stat(path string, buf *StatBuf, flags int) int {
	name := h.strip(path)
	*buf = StatBuf{}

	f, err := h.fs.OpenFile(name, host.FlagRead)
	if err != nil {
		h.log.Debug().Err(err).Str("path", name).Msg("stat failed")
		return -1
	}
	defer f.Close()

	mode, ok := StatModeFor(f.Type(), name)
	if !ok {
		return -1
	}
	size, err := f.Size()
	if err != nil {
		return -1
	}
	mtime, err := f.ModTime()
	if err != nil {
		return -1
	}
	buf.Size = size
	buf.ModTime = mtime.Unix()
	buf.Mode = mode
	return 0
}

// Mkdir creates a directory. mode is ignored; the host decides permissions.
func (h *FileSystemHandler) Mkdir(path string, mode os.FileMode) int {
	name := h.strip(path)
	if err := h.fs.CreateDirectory(name); err != nil {
		h.log.Debug().Err(err).Str("path", name).Msg("mkdir failed")
		return -1
	}
	return 0
}

func (h *FileSystemHandler) Rmdir(path string) int {
	name := h.strip(path)
	if err := h.fs.RemoveDirectory(name); err != nil {
		h.log.Debug().Err(err).Str("path", name).Msg("rmdir failed")
		return -1
	}
	return 0
}

// RmdirRecursive is Rmdir: host directory removal already recurses.
func (h *FileSystemHandler) RmdirRecursive(path string) int {
	return h.Rmdir(path)
}

// ReadDirEx lists the entries of a directory, stopping once maxFiles names
// have been collected. maxFiles <= 0 means no limit.
func (h *FileSystemHandler) ReadDirEx(path string, maxFiles int) []string {
	name := h.strip(path)
	var files []string
	err := h.fs.ListFiles(name, func(entry string, _ bool) {
		if maxFiles > 0 && len(files) >= maxFiles {
			return
		}
		files = append(files, entry)
	})
	if err != nil {
		h.log.Debug().Err(err).Str("path", name).Msg("read dir failed")
		return nil
	}
	return files
}

// SiblingFiles expands path as a glob pattern on the host filesystem.
func (h *FileSystemHandler) SiblingFiles(path string) []string {
	name := h.strip(path)
	matches, err := h.fs.Glob(name)
	if err != nil || len(matches) == 0 {
		return nil
	}
	return matches
}

func (h *FileSystemHandler) HasOptimizedReadMultiRange(string) bool {
	return false
}

func (h *FileSystemHandler) Unlink(path string) int {
	name := h.strip(path)
	if err := h.fs.RemoveFile(name); err != nil {
		h.log.Debug().Err(err).Str("path", name).Msg("unlink failed")
		return -1
	}
	return 0
}
