package vsi

import (
	"github.com/cockroachdb/errors"

	"github.com/tingold/geoblob/host"
)

// ParseAccessMode converts a C stdio mode string ("r", "rb+", "w", "a+", ...)
// into host open flags. A '+' in the second or third position adds the
// complementary direction. Any leading character other than r, w or a is a
// caller bug and panics.
func ParseAccessMode(access string) host.FileFlags {
	if access == "" {
		panic(errors.AssertionFailedf("vsi: empty file access mode"))
	}
	plus := len(access) > 1 && access[1] == '+' || len(access) > 2 && access[2] == '+'

	var flags host.FileFlags
	switch access[0] {
	case 'r':
		flags = host.FlagRead
		if plus {
			flags |= host.FlagWrite
		}
	case 'w':
		flags = host.FlagWrite | host.FlagCreateNew
		if plus {
			flags |= host.FlagRead
		}
	case 'a':
		flags = host.FlagAppend
		if plus {
			flags |= host.FlagRead
		}
	default:
		panic(errors.AssertionFailedf("vsi: unknown file access mode %q", access))
	}
	return flags
}
