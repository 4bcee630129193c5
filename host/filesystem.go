// Package host models the primitives the spatial extension consumes from the
// embedding database: its virtual file system, open file handles and the
// per-connection registered-state slot.
package host

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned when a connection is used after Close.
var ErrClosed = errors.New("host: connection closed")

// FileFlags select how a file is opened.
type FileFlags uint8

const (
	FlagRead FileFlags = 1 << iota
	FlagWrite
	// FlagCreateNew creates the file, truncating it when it already exists.
	FlagCreateNew
	// FlagAppend positions every write at the end of the file.
	FlagAppend
)

// Has reports whether all bits of o are set.
func (f FileFlags) Has(o FileFlags) bool { return f&o == o }

func (f FileFlags) String() string {
	var parts []string
	if f.Has(FlagRead) {
		parts = append(parts, "read")
	}
	if f.Has(FlagWrite) {
		parts = append(parts, "write")
	}
	if f.Has(FlagCreateNew) {
		parts = append(parts, "create-new")
	}
	if f.Has(FlagAppend) {
		parts = append(parts, "append")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// FileType is the kind of object a handle refers to.
type FileType int

const (
	FileTypeInvalid FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeFIFO
	FileTypeSocket
	FileTypeLink
	FileTypeBlockDev
	FileTypeCharDev
)

// File is an open handle with an implicit position.
type File interface {
	// Read reads up to len(p) bytes at the current position. It returns 0
	// at end of file; short reads are not errors.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(pos int64) error
	Position() int64
	Size() (int64, error)
	ModTime() (time.Time, error)
	Type() FileType
	Sync() error
	Truncate(size int64) error
	Close() error
	Path() string
}

// FileSystem is the database's view of storage for one connection.
type FileSystem interface {
	OpenFile(path string, flags FileFlags) (File, error)
	CreateDirectory(path string) error
	// RemoveDirectory removes the directory and everything below it.
	RemoveDirectory(path string) error
	RemoveFile(path string) error
	ListFiles(path string, fn func(name string, isDir bool)) error
	Glob(pattern string) ([]string, error)
}

var remotePrefixes = []string{
	"http://", "https://",
	"s3://", "s3a://", "s3n://",
	"gcs://", "gs://",
	"r2://", "azure://", "az://", "abfss://",
	"hf://",
}

// IsRemotePath reports whether path addresses a remote object store or web
// server rather than a local file.
func IsRemotePath(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range remotePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
