package vsi

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoblob/host"
)

const testPrefix = "/vsiduckdb-00000000-0000-4000-8000-000000000001/"

func newTestHandler(t *testing.T, opts ...HandlerOption) (*FileSystemHandler, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/data/roads.fgb", []byte("0123456789"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/data/rivers.fgb", []byte("xy"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/data/notes.txt", []byte("n"), 0o644))
	return NewFileSystemHandler(testPrefix, host.NewFileSystem(mem), opts...), mem
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "/data/a.fgb", stripPrefix(testPrefix, testPrefix+"/data/a.fgb"))
	assert.Equal(t, "data/a.fgb", stripPrefix(testPrefix, testPrefix+"data/a.fgb"))
	assert.Equal(t, "", stripPrefix(testPrefix, testPrefix))

	foreign := "/vsiduckdb-00000000-0000-4000-8000-000000000002//data/a.fgb"
	assert.Equal(t, foreign, stripPrefix(testPrefix, foreign))
}

func TestFileSystemHandler_OpenReadWrite(t *testing.T) {
	h, mem := newTestHandler(t)

	fh := h.Open(testPrefix+"/data/roads.fgb", "rb", false)
	require.NotNil(t, fh)
	buf := make([]byte, 4)
	assert.Equal(t, 1, fh.Read(buf, 4, 1))
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, 0, fh.Close())

	out := h.Open(testPrefix+"/out/new.fgb", "wb", false)
	require.NotNil(t, out)
	assert.Equal(t, 3, out.Write([]byte("abc"), 1, 3))
	assert.Equal(t, 0, out.Flush())
	assert.Equal(t, 0, out.Close())

	got, err := afero.ReadFile(mem, "/out/new.fgb")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	app := h.Open(testPrefix+"/out/new.fgb", "a", false)
	require.NotNil(t, app)
	require.Equal(t, 0, app.Seek(0, io.SeekStart))
	assert.Equal(t, 1, app.Write([]byte("d"), 1, 1))
	assert.Equal(t, 0, app.Close())
	got, err = afero.ReadFile(mem, "/out/new.fgb")
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}

func TestFileSystemHandler_OpenFailureReporting(t *testing.T) {
	var reported []string
	h, _ := newTestHandler(t, WithErrorReporter(func(class ErrorClass, msg string) {
		assert.Equal(t, ErrorFileError, class)
		reported = append(reported, msg)
	}))

	assert.Nil(t, h.Open(testPrefix+"/missing.fgb", "r", false))
	assert.Empty(t, reported, "no report unless requested")

	assert.Nil(t, h.Open(testPrefix+"/missing.fgb", "r", true))
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "/missing.fgb")
}

func TestFileSystemHandler_ForeignPrefixIsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	foreign := "/vsiduckdb-ffffffff-ffff-4fff-bfff-ffffffffffff//data/roads.fgb"

	assert.Nil(t, h.Open(foreign, "r", false))
	var st StatBuf
	assert.Equal(t, -1, h.Stat(foreign, &st, 0))
	assert.Equal(t, -1, h.Unlink(foreign))
}

func TestFileSystemHandler_Stat(t *testing.T) {
	h, _ := newTestHandler(t)

	var st StatBuf
	require.Equal(t, 0, h.Stat(testPrefix+"/data/roads.fgb", &st, 0))
	assert.Equal(t, int64(10), st.Size)
	assert.Equal(t, ModeRegular, st.Mode)
	assert.NotZero(t, st.ModTime)

	require.Equal(t, 0, h.Stat(testPrefix+"/data", &st, 0))
	assert.True(t, st.IsDir())

	st = StatBuf{Size: 99, Mode: ModeDir}
	assert.Equal(t, -1, h.Stat(testPrefix+"/nope", &st, 0))
	assert.Equal(t, StatBuf{}, st, "failed stat leaves a zeroed buffer")
}

func TestFileSystemHandler_Directories(t *testing.T) {
	h, mem := newTestHandler(t)

	require.Equal(t, 0, h.Mkdir(testPrefix+"/new", 0o755))
	require.Equal(t, 0, h.Mkdir(testPrefix+"/new", 0o755))
	ok, err := afero.DirExists(mem, "/new")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"notes.txt", "rivers.fgb", "roads.fgb"}, h.ReadDirEx(testPrefix+"/data", 0))
	assert.Equal(t, []string{"notes.txt", "rivers.fgb"}, h.ReadDirEx(testPrefix+"/data", 2))
	assert.Nil(t, h.ReadDirEx(testPrefix+"/absent", 10))
	assert.Nil(t, h.ReadDirEx(testPrefix+"/new", 10), "empty directory lists as nil")

	assert.Equal(t, []string{"/data/rivers.fgb", "/data/roads.fgb"}, h.SiblingFiles(testPrefix+"/data/*.fgb"))
	assert.Nil(t, h.SiblingFiles(testPrefix+"/data/*.shp"))

	assert.Equal(t, 0, h.RmdirRecursive(testPrefix+"/data"))
	assert.Equal(t, -1, h.Rmdir(testPrefix+"/data"))
	assert.Equal(t, 0, h.Rmdir(testPrefix+"/new"))
	assert.False(t, h.HasOptimizedReadMultiRange(testPrefix+"/x"))
}

func TestFileSystemHandler_Unlink(t *testing.T) {
	h, mem := newTestHandler(t)

	assert.Equal(t, 0, h.Unlink(testPrefix+"/data/notes.txt"))
	assert.Equal(t, -1, h.Unlink(testPrefix+"/data/notes.txt"))
	ok, err := afero.Exists(mem, "/data/notes.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
