// Package vsi bridges the host database's per-connection filesystem to a
// process-wide, prefix-routed handler registry of the kind vector I/O
// libraries expect.
//
// Each connection gets a random /vsiduckdb-<uuid>/ prefix. Paths beneath it
// are stripped of the prefix and served by that connection's host
// filesystem; everything else falls through to the registry's fallback
// handler.
package vsi

import (
	"github.com/cockroachdb/errors"
)

// PrefixFormat is the pattern every per-connection routing prefix follows.
const PrefixFormat = "/vsiduckdb-%s/"

var (
	ErrNotFound   = errors.New("vsi: no handler for path")
	ErrOpenFailed = errors.New("vsi: open failed")
	ErrStatFailed = errors.New("vsi: stat failed")
	ErrIOFailed   = errors.New("vsi: i/o failed")
)

// ErrorClass categorises errors raised through an ErrorReporter.
type ErrorClass int

const (
	ErrorNone ErrorClass = iota
	ErrorUnclassified
	ErrorFileError
	ErrorNotSupported
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorNone:
		return "none"
	case ErrorUnclassified:
		return "unclassified"
	case ErrorFileError:
		return "file"
	case ErrorNotSupported:
		return "not-supported"
	default:
		return "unknown"
	}
}

// ErrorReporter receives failures a handler was asked to signal.
type ErrorReporter func(class ErrorClass, msg string)
