package vsi

import (
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoblob/host"
)

// chunkedFile serves data in progressively smaller reads.
type chunkedFile struct {
	data   []byte
	chunks []int
	pos    int64
	err    error
}

func (f *chunkedFile) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		return 0, f.err
	}
	n := f.chunks[0]
	f.chunks = f.chunks[1:]
	if n > len(p) {
		n = len(p)
	}
	n = copy(p[:n], f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *chunkedFile) Write(p []byte) (int, error) {
	half := len(p) / 2
	return half, errors.New("disk full")
}

func (f *chunkedFile) Seek(pos int64) error {
	f.pos = pos
	return nil
}

func (f *chunkedFile) Position() int64 { return f.pos }
func (f *chunkedFile) Size() (int64, error) { return int64(len(f.data)), nil }
func (f *chunkedFile) ModTime() (time.Time, error) { return time.Time{}, nil }
func (f *chunkedFile) Type() host.FileType { return host.FileTypeRegular }
func (f *chunkedFile) Sync() error { return errors.New("sync failed") }
func (f *chunkedFile) Truncate(int64) error { return nil }
func (f *chunkedFile) Close() error { return nil }
func (f *chunkedFile) Path() string { return "/chunked" }

func TestFileHandle_ShortReads(t *testing.T) {
	tests := []struct {
		name   string
		chunks []int
		size   int
		count  int
		want   int
	}{
		{"full request in pieces", []int{5, 3, 1, 3}, 4, 3, 3},
		{"stops at zero read", []int{5, 3, 1, 0}, 4, 5, 2},
		{"partial element dropped", []int{7, 0}, 4, 2, 1},
		{"nothing available", []int{0}, 1, 8, 0},
		{"byte elements", []int{2, 2, 2, 0}, 1, 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &chunkedFile{data: make([]byte, 64), chunks: tt.chunks}
			h := NewFileHandle(f, zerolog.Nop())
			buf := make([]byte, tt.size*tt.count)
			assert.Equal(t, tt.want, h.Read(buf, tt.size, tt.count))
		})
	}
}

func TestFileHandle_ReadErrorStopsLoop(t *testing.T) {
	f := &chunkedFile{data: make([]byte, 64), chunks: []int{8}, err: errors.New("io")}
	h := NewFileHandle(f, zerolog.Nop())
	buf := make([]byte, 32)
	assert.Equal(t, 2, h.Read(buf, 4, 8))
}

func TestFileHandle_WriteAndStatusCodes(t *testing.T) {
	f := &chunkedFile{data: make([]byte, 8)}
	h := NewFileHandle(f, zerolog.Nop())

	assert.Equal(t, 2, h.Write(make([]byte, 16), 4, 4), "half of 16 bytes is two elements")
	assert.Equal(t, -1, h.Flush())
	assert.Equal(t, 0, h.Truncate(4))
	assert.Equal(t, 0, h.Close())
	assert.Zero(t, h.Read(nil, 0, 10))
	assert.Zero(t, h.Write(nil, 4, 0))
}

func TestFileHandle_BufferTooSmallPanics(t *testing.T) {
	h := NewFileHandle(&chunkedFile{data: make([]byte, 8)}, zerolog.Nop())
	assert.Panics(t, func() { h.Read(make([]byte, 3), 4, 1) })
	assert.Panics(t, func() { h.Write(make([]byte, 3), 2, 2) })
}

func openMem(t *testing.T, content string) (*FileHandle, host.FileSystem) {
	t.Helper()
	fs := host.NewMemFileSystem()
	f, err := fs.OpenFile("/f.bin", host.FlagRead|host.FlagWrite|host.FlagCreateNew)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Seek(0))
	return NewFileHandle(f, zerolog.Nop()), fs
}

func TestFileHandle_SeekTellEof(t *testing.T) {
	h, _ := openMem(t, "0123456789")

	assert.Equal(t, int64(0), h.Tell())
	assert.False(t, h.Eof())

	require.Equal(t, 0, h.Seek(4, io.SeekStart))
	assert.Equal(t, int64(4), h.Tell())

	require.Equal(t, 0, h.Seek(3, io.SeekCurrent))
	assert.Equal(t, int64(7), h.Tell())

	require.Equal(t, 0, h.Seek(-2, io.SeekEnd))
	assert.Equal(t, int64(8), h.Tell())

	buf := make([]byte, 2)
	assert.Equal(t, 2, h.Read(buf, 1, 2))
	assert.Equal(t, "89", string(buf))
	assert.True(t, h.Eof())

	require.Equal(t, 0, h.Seek(0, io.SeekEnd))
	assert.True(t, h.Eof())

	assert.Equal(t, -1, h.Seek(-20, io.SeekEnd))
	assert.Panics(t, func() { h.Seek(0, 7) })
}

func TestReadAllAndWriter(t *testing.T) {
	h, _ := openMem(t, "abcdef")
	require.Equal(t, 0, h.Seek(3, io.SeekStart))

	data, err := ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	w := NewWriter(h)
	n, err := w.Write([]byte("gh"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err = ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(data))
	assert.Equal(t, 0, h.Close())
}

func TestWriter_ShortWrite(t *testing.T) {
	w := NewWriter(NewFileHandle(&chunkedFile{}, zerolog.Nop()))
	n, err := w.Write([]byte("abcd"))
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}
