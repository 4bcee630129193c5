package functions

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoblob/fgb"
	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/vsi"
)

func TestResolvePath(t *testing.T) {
	conn := host.NewConnection(host.NewMemFileSystem())
	defer conn.Close()
	fm := vsi.NewFileManager()

	p, err := ResolvePath(conn, fm, "data/roads.fgb")
	require.NoError(t, err)

	state, err := vsi.GetOrCreate(conn, fm)
	require.NoError(t, err)
	assert.Equal(t, state.Prefix()+"data/roads.fgb", p)
	assert.True(t, fm.Installed(state.Prefix()))

	p, err = ResolvePath(conn, fm, "/vsimem/other.fgb")
	require.NoError(t, err)
	assert.Equal(t, "/vsimem/other.fgb", p)
}

func TestFlatGeobufTableFunctions(t *testing.T) {
	fs := host.NewMemFileSystem()
	conn := host.NewConnection(fs)
	defer conn.Close()
	fm := vsi.NewFileManager()

	features := []fgb.Feature{
		{Geometry: blobOf(t, orb.Point{1, 2}), Properties: geojson.Properties{"name": "a"}},
		{Geometry: blobOf(t, orb.Point{3, 4}), Properties: geojson.Properties{"name": "b"}},
		{Geometry: emptyPoint(t), Properties: geojson.Properties{"name": "empty"}},
	}
	n, err := WriteFlatGeobuf(conn, fm, "out.fgb", features, &fgb.Options{Name: "pts", IncludeIndex: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := afero.Exists(fs.Afero(), "out.fgb")
	require.NoError(t, err)
	assert.True(t, ok, "file should land on the connection filesystem")

	meta, err := ReadFlatGeobufMeta(conn, fm, "out.fgb")
	require.NoError(t, err)
	assert.Equal(t, "pts", meta.Name)
	assert.Equal(t, "Point", meta.GeometryType)
	assert.EqualValues(t, 2, meta.FeaturesCount)
	require.Len(t, meta.Columns, 1)
	assert.Equal(t, "name", meta.Columns[0].Name)

	got, err := ReadFlatGeobuf(conn, fm, "out.fgb")
	require.NoError(t, err)
	require.Len(t, got, 2)
	names := map[any]orb.Geometry{}
	for _, f := range got {
		names[f.Properties["name"]] = orbOf(t, f.Geometry)
	}
	assert.Equal(t, orb.Point{1, 2}, names["a"])
	assert.Equal(t, orb.Point{3, 4}, names["b"])
}

func TestReadFlatGeobuf_OtherConnection(t *testing.T) {
	fm := vsi.NewFileManager()

	owner := host.NewConnection(host.NewMemFileSystem())
	defer owner.Close()
	_, err := WriteFlatGeobuf(owner, fm, "private.fgb", []fgb.Feature{
		{Geometry: blobOf(t, orb.Point{0, 0})},
	}, nil)
	require.NoError(t, err)

	other := host.NewConnection(host.NewMemFileSystem())
	defer other.Close()
	_, err = ReadFlatGeobuf(other, fm, "private.fgb")
	assert.Error(t, err)
}
