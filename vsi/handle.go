package vsi

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tingold/geoblob/host"
)

// Handle is the open-file contract of the handler registry. Methods that
// return int follow the C convention: 0 on success, -1 on failure. Read and
// Write return the number of whole elements transferred.
type Handle interface {
	Tell() int64
	Seek(offset int64, whence int) int
	Read(buf []byte, size, count int) int
	Write(buf []byte, size, count int) int
	Eof() bool
	Flush() int
	Truncate(size int64) int
	Close() int
}

// FileHandle serves a Handle from one open host file. It performs no
// locking; callers must not share a handle between goroutines.
type FileHandle struct {
	file host.File
	log  zerolog.Logger
}

var _ Handle = (*FileHandle)(nil)

// NewFileHandle takes ownership of f.
func NewFileHandle(f host.File, log zerolog.Logger) *FileHandle {
	return &FileHandle{file: f, log: log}
}

// File returns the underlying host file.
func (h *FileHandle) File() host.File { return h.file }

func (h *FileHandle) Tell() int64 {
	return h.file.Position()
}

// Seek moves the file position. whence is one of io.SeekStart, io.SeekCurrent
// or io.SeekEnd; any other value panics.
func (h *FileHandle) Seek(offset int64, whence int) int {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = h.file.Position() + offset
	case io.SeekEnd:
		size, err := h.file.Size()
		if err != nil {
			h.log.Debug().Err(err).Str("path", h.file.Path()).Msg("seek: size lookup failed")
			return -1
		}
		pos = size + offset
	default:
		panic(errors.AssertionFailedf("vsi: unknown seek whence %d", whence))
	}
	if err := h.file.Seek(pos); err != nil {
		h.log.Debug().Err(err).Str("path", h.file.Path()).Int64("pos", pos).Msg("seek failed")
		return -1
	}
	return 0
}

// Read fills buf with up to size*count bytes, retrying short reads until the
// request is satisfied or the file returns no more data. It returns the
// number of complete elements read.
func (h *FileHandle) Read(buf []byte, size, count int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	want := size * count
	if want > len(buf) {
		panic(errors.AssertionFailedf("vsi: read of %d bytes into %d byte buffer", want, len(buf)))
	}
	total := 0
	for total < want {
		n, err := h.file.Read(buf[total:want])
		total += n
		if err != nil {
			h.log.Debug().Err(err).Str("path", h.file.Path()).Msg("read failed")
			break
		}
		if n == 0 {
			break
		}
	}
	return total / size
}

// Write writes size*count bytes from buf in a single call and returns the
// number of complete elements written.
func (h *FileHandle) Write(buf []byte, size, count int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	want := size * count
	if want > len(buf) {
		panic(errors.AssertionFailedf("vsi: write of %d bytes from %d byte buffer", want, len(buf)))
	}
	n, err := h.file.Write(buf[:want])
	if err != nil {
		h.log.Debug().Err(err).Str("path", h.file.Path()).Msg("write failed")
	}
	return n / size
}

// Eof reports whether the position sits at the current end of the file.
func (h *FileHandle) Eof() bool {
	size, err := h.file.Size()
	if err != nil {
		return true
	}
	return h.file.Position() == size
}

func (h *FileHandle) Flush() int {
	return h.status("flush", h.file.Sync())
}

func (h *FileHandle) Truncate(size int64) int {
	return h.status("truncate", h.file.Truncate(size))
}

func (h *FileHandle) Close() int {
	return h.status("close", h.file.Close())
}

func (h *FileHandle) status(op string, err error) int {
	if err != nil {
		h.log.Debug().Err(err).Str("path", h.file.Path()).Msgf("%s failed", op)
		return -1
	}
	return 0
}

// ReadAll reads the whole file behind h starting from offset zero.
func ReadAll(h Handle) ([]byte, error) {
	if h.Seek(0, io.SeekEnd) != 0 {
		return nil, errors.Wrap(ErrIOFailed, "seek to end")
	}
	size := h.Tell()
	if h.Seek(0, io.SeekStart) != 0 {
		return nil, errors.Wrap(ErrIOFailed, "seek to start")
	}
	buf := make([]byte, size)
	if n := h.Read(buf, 1, len(buf)); int64(n) != size {
		return nil, errors.Wrapf(ErrIOFailed, "short read: %d of %d bytes", n, size)
	}
	return buf, nil
}

// NewWriter adapts h to io.Writer.
func NewWriter(h Handle) io.Writer {
	return handleWriter{h: h}
}

type handleWriter struct {
	h Handle
}

func (w handleWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := w.h.Write(p, 1, len(p))
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
