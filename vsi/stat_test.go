package vsi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tingold/geoblob/host"
)

func TestStatModeFor(t *testing.T) {
	tests := []struct {
		name string
		typ  host.FileType
		path string
		mode uint32
		ok   bool
	}{
		{"regular", host.FileTypeRegular, "/a", ModeRegular, true},
		{"dir", host.FileTypeDir, "/a", ModeDir, true},
		{"chardev", host.FileTypeCharDev, "/dev/null", ModeCharDev, true},
		{"fifo local", host.FileTypeFIFO, "/tmp/p", 0, false},
		{"invalid local", host.FileTypeInvalid, "/tmp/x", 0, false},
		{"invalid remote", host.FileTypeInvalid, "https://example.com/x.fgb", ModeRegular, true},
		{"link remote", host.FileTypeLink, "s3://b/k", ModeRegular, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, ok := StatModeFor(tt.typ, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mode, mode)
		})
	}
}

func TestStatBuf_Kind(t *testing.T) {
	assert.True(t, (&StatBuf{Mode: ModeRegular}).IsRegular())
	assert.False(t, (&StatBuf{Mode: ModeRegular}).IsDir())
	assert.True(t, (&StatBuf{Mode: ModeDir}).IsDir())
	assert.False(t, (&StatBuf{Mode: ModeCharDev}).IsRegular())
}
