package host

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// AferoFileSystem implements FileSystem on top of an afero.Fs. Production
// code uses afero.NewOsFs; tests use afero.NewMemMapFs.
type AferoFileSystem struct {
	fs afero.Fs
}

var _ FileSystem = (*AferoFileSystem)(nil)

// NewFileSystem wraps fs.
func NewFileSystem(fs afero.Fs) *AferoFileSystem {
	return &AferoFileSystem{fs: fs}
}

// NewOSFileSystem returns a FileSystem backed by the local disk.
func NewOSFileSystem() *AferoFileSystem {
	return NewFileSystem(afero.NewOsFs())
}

// NewMemFileSystem returns a FileSystem backed by memory.
func NewMemFileSystem() *AferoFileSystem {
	return NewFileSystem(afero.NewMemMapFs())
}

// Afero exposes the wrapped filesystem.
func (a *AferoFileSystem) Afero() afero.Fs {
	return a.fs
}

func osFlags(flags FileFlags) (int, error) {
	read := flags.Has(FlagRead)
	write := flags.Has(FlagWrite) || flags.Has(FlagCreateNew) || flags.Has(FlagAppend)

	var mode int
	switch {
	case read && write:
		mode = os.O_RDWR
	case write:
		mode = os.O_WRONLY
	case read:
		mode = os.O_RDONLY
	default:
		return 0, errors.Newf("host: open flags %s select neither read nor write", flags)
	}
	if flags.Has(FlagCreateNew) {
		mode |= os.O_CREATE | os.O_TRUNC
	}
	if flags.Has(FlagAppend) {
		mode |= os.O_CREATE | os.O_APPEND
	}
	return mode, nil
}

func (a *AferoFileSystem) OpenFile(path string, flags FileFlags) (File, error) {
	mode, err := osFlags(flags)
	if err != nil {
		return nil, err
	}
	f, err := a.fs.OpenFile(path, mode, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "host: open %q", path)
	}
	return &aferoFile{f: f, path: path, append: flags.Has(FlagAppend)}, nil
}

func (a *AferoFileSystem) CreateDirectory(path string) error {
	if info, err := a.fs.Stat(path); err == nil && info.IsDir() {
		return nil
	}
	return errors.Wrapf(a.fs.Mkdir(path, 0o755), "host: mkdir %q", path)
}

func (a *AferoFileSystem) RemoveDirectory(path string) error {
	info, err := a.fs.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "host: rmdir %q", path)
	}
	if !info.IsDir() {
		return errors.Newf("host: rmdir %q: not a directory", path)
	}
	return errors.Wrapf(a.fs.RemoveAll(path), "host: rmdir %q", path)
}

func (a *AferoFileSystem) RemoveFile(path string) error {
	return errors.Wrapf(a.fs.Remove(path), "host: remove %q", path)
}

func (a *AferoFileSystem) ListFiles(path string, fn func(name string, isDir bool)) error {
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return errors.Wrapf(err, "host: list %q", path)
	}
	for _, e := range entries {
		fn(e.Name(), e.IsDir())
	}
	return nil
}

func (a *AferoFileSystem) Glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(a.fs, pattern)
	return matches, errors.Wrapf(err, "host: glob %q", pattern)
}

type aferoFile struct {
	f      afero.File
	path   string
	pos    int64
	append bool
}

func (h *aferoFile) Path() string { return h.path }

func (h *aferoFile) Read(p []byte) (int, error) {
	n, err := h.f.Read(p)
	h.pos += int64(n)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (h *aferoFile) Write(p []byte) (int, error) {
	if h.append {
		end, err := h.f.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		h.pos = end
	}
	n, err := h.f.Write(p)
	h.pos += int64(n)
	return n, err
}

func (h *aferoFile) Seek(pos int64) error {
	if pos < 0 {
		return errors.Newf("host: seek %q to negative offset %d", h.path, pos)
	}
	if _, err := h.f.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	h.pos = pos
	return nil
}

func (h *aferoFile) Position() int64 { return h.pos }

func (h *aferoFile) Size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *aferoFile) ModTime() (time.Time, error) {
	info, err := h.f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (h *aferoFile) Type() FileType {
	info, err := h.f.Stat()
	if err != nil {
		return FileTypeInvalid
	}
	return fileTypeOf(info.Mode())
}

func fileTypeOf(mode fs.FileMode) FileType {
	switch {
	case mode.IsRegular():
		return FileTypeRegular
	case mode.IsDir():
		return FileTypeDir
	case mode&fs.ModeSymlink != 0:
		return FileTypeLink
	case mode&fs.ModeNamedPipe != 0:
		return FileTypeFIFO
	case mode&fs.ModeSocket != 0:
		return FileTypeSocket
	case mode&fs.ModeCharDevice != 0:
		return FileTypeCharDev
	case mode&fs.ModeDevice != 0:
		return FileTypeBlockDev
	default:
		return FileTypeInvalid
	}
}

func (h *aferoFile) Sync() error { return h.f.Sync() }

func (h *aferoFile) Truncate(size int64) error { return h.f.Truncate(size) }

func (h *aferoFile) Close() error { return h.f.Close() }
