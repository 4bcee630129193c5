package vsi

import (
	"github.com/tingold/geoblob/host"
)

// POSIX st_mode file type bits.
const (
	ModeRegular uint32 = 0o100000
	ModeDir     uint32 = 0o040000
	ModeCharDev uint32 = 0o020000
)

// StatBuf is the subset of struct stat the bridge fills in.
type StatBuf struct {
	Size    int64
	ModTime int64 // seconds since the epoch
	Mode    uint32
}

// IsDir reports whether the mode describes a directory.
func (s *StatBuf) IsDir() bool { return s.Mode&ModeDir != 0 && s.Mode&ModeRegular == 0 }

// IsRegular reports whether the mode describes a regular file.
func (s *StatBuf) IsRegular() bool { return s.Mode&ModeRegular != 0 }

// StatModeFor maps a host file type to stat mode bits. Only regular files,
// directories and character devices exist on every platform. Remote
// backends rarely report a type at all, so anything else under a remote
// path is treated as a regular file; otherwise ok is false.
func StatModeFor(t host.FileType, path string) (mode uint32, ok bool) {
	switch t {
	case host.FileTypeRegular:
		return ModeRegular, true
	case host.FileTypeDir:
		return ModeDir, true
	case host.FileTypeCharDev:
		return ModeCharDev, true
	default:
		if host.IsRemotePath(path) {
			return ModeRegular, true
		}
		return 0, false
	}
}
