package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoblob/vsi"
)

const citiesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [139.6917, 35.6895]},
     "properties": {"name": "Tokyo", "population": 13960000, "capital": true}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-0.1276, 51.5074]},
     "properties": {"name": "London", "population": 8982000, "capital": true}},
    {"type": "Feature", "geometry": null, "properties": {"name": "Nowhere"}}
  ]
}`

func testApp(t *testing.T, cfg Config) (*app, afero.Fs, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cities.geojson", []byte(citiesGeoJSON), 0o644))
	var out bytes.Buffer
	a := newApp(cfg, fs, &out, zerolog.Nop())
	t.Cleanup(func() { _ = a.conn.Close() })
	return a, fs, &out
}

func TestConvertInfoDump(t *testing.T) {
	a, fs, out := testApp(t, Config{LayerName: "cities"})

	require.NoError(t, a.dispatch([]string{"convert", "cities.geojson", "cities.fgb"}))
	ok, err := afero.Exists(fs, "cities.fgb")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.dispatch([]string{"info", "cities.fgb"}))
	info := out.String()
	assert.Contains(t, info, "name:      cities")
	assert.Contains(t, info, "type:      Point")
	assert.Contains(t, info, "features:  2")
	assert.Contains(t, info, "column:    name String")

	out.Reset()
	require.NoError(t, a.dispatch([]string{"dump", "cities.fgb"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Contains(t, l, `"type":"Point"`)
	}
}

func TestDump_Simplify(t *testing.T) {
	a, fs, out := testApp(t, Config{SimplifyTolerance: 0.5})
	line := `{"type":"FeatureCollection","features":[{"type":"Feature",
	  "geometry":{"type":"LineString","coordinates":[[0,0],[1,0.01],[2,0]]},"properties":{}}]}`
	require.NoError(t, afero.WriteFile(fs, "line.geojson", []byte(line), 0o644))

	require.NoError(t, a.dispatch([]string{"convert", "line.geojson", "line.fgb"}))
	require.NoError(t, a.dispatch([]string{"dump", "line.fgb"}))
	assert.Equal(t, `{"type":"LineString","coordinates":[[0,0],[2,0]]}`, strings.TrimSpace(out.String()))
}

func TestDispatch_Usage(t *testing.T) {
	a, _, _ := testApp(t, Config{})
	tests := [][]string{
		{"convert", "only-one"},
		{"info"},
		{"dump", "a", "b"},
		{"frobnicate"},
	}
	for _, args := range tests {
		assert.True(t, errors.Is(a.dispatch(args), errUsage), "args %v", args)
	}
	assert.True(t, errors.Is(run(Config{}, nil, &bytes.Buffer{}, zerolog.Nop()), errUsage))
}

func TestDispatch_MissingFile(t *testing.T) {
	a, _, _ := testApp(t, Config{})
	assert.Error(t, a.dispatch([]string{"info", "missing.fgb"}))
	assert.Error(t, a.dispatch([]string{"convert", "missing.geojson", "out.fgb"}))
}

// closeFailing serves files whose Close reports failure.
type closeFailing struct{ vsi.FilesystemHandler }

func (c closeFailing) Open(path, access string, setError bool) vsi.Handle {
	h := c.FilesystemHandler.Open(path, access, setError)
	if h == nil {
		return nil
	}
	return closeFailingHandle{h}
}

type closeFailingHandle struct{ vsi.Handle }

func (h closeFailingHandle) Close() int {
	h.Handle.Close()
	return -1
}

func TestConvert_CloseFailure(t *testing.T) {
	a, fs, _ := testApp(t, Config{})
	s, err := vsi.GetOrCreate(a.conn, a.fm)
	require.NoError(t, err)
	a.fm.InstallHandler(s.Prefix(), closeFailing{s.Handler()})

	err = a.dispatch([]string{"convert", "cities.geojson", "cities.fgb"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, vsi.ErrIOFailed))
	ok, err := afero.Exists(fs, "cities.fgb")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDumpMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total", Help: "test"}, []string{"op"})
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	reg.MustRegister(c, g)
	c.WithLabelValues("read").Add(3)
	g.Set(2)

	var buf bytes.Buffer
	require.NoError(t, dumpMetrics(&buf, reg))
	assert.Equal(t, "test_gauge 2\ntest_total{op=\"read\"} 3\n", buf.String())
}
