// Command geoblob converts between GeoJSON and FlatGeobuf through a
// connection-scoped virtual filesystem and inspects FlatGeobuf files.
//
//	geoblob [flags] convert <in.geojson> <out.fgb>
//	geoblob [flags] info <file.fgb>
//	geoblob [flags] dump <file.fgb>
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/tingold/geoblob"
	"github.com/tingold/geoblob/fgb"
	"github.com/tingold/geoblob/functions"
	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/internal/logger"
	"github.com/tingold/geoblob/vsi"
)

var errUsage = errors.New("usage: geoblob [flags] convert|info|dump <args>")

func main() {
	cfg, args, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Build(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: "geoblob"}, os.Stderr)

	err = run(cfg, args, os.Stdout, log)
	if cfg.Metrics {
		if merr := dumpMetrics(os.Stdout, prometheus.DefaultGatherer); merr != nil {
			log.Error().Err(merr).Msg("metrics dump failed")
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app is one CLI session: a connection over the configured root and the
// file manager its handler is installed into.
type app struct {
	cfg  Config
	conn *host.Connection
	fm   *vsi.FileManager
	out  io.Writer
	log  zerolog.Logger
}

func newApp(cfg Config, fs afero.Fs, out io.Writer, log zerolog.Logger) *app {
	return &app{
		cfg:  cfg,
		conn: host.NewConnection(host.NewFileSystem(fs), host.WithLogger(log)),
		fm:   vsi.NewFileManager(vsi.WithManagerLogger(log)),
		out:  out,
		log:  log,
	}
}

func run(cfg Config, args []string, out io.Writer, log zerolog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return errors.Wrapf(err, "resolve root %q", cfg.Root)
	}
	a := newApp(cfg, afero.NewBasePathFs(afero.NewOsFs(), root), out, log)
	defer a.conn.Close()
	return a.dispatch(args)
}

func (a *app) dispatch(args []string) error {
	switch args[0] {
	case "convert":
		if len(args) != 3 {
			return errUsage
		}
		return a.convert(args[1], args[2])
	case "info":
		if len(args) != 2 {
			return errUsage
		}
		return a.info(args[1])
	case "dump":
		if len(args) != 2 {
			return errUsage
		}
		return a.dump(args[1])
	default:
		return errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
}

// convert reads a GeoJSON FeatureCollection and writes it as FlatGeobuf.
func (a *app) convert(in, out string) error {
	path, err := functions.ResolvePath(a.conn, a.fm, in)
	if err != nil {
		return err
	}
	h, err := a.fm.Open(path, "rb")
	if err != nil {
		return err
	}
	data, err := vsi.ReadAll(h)
	if rc := h.Close(); err == nil && rc != 0 {
		err = errors.Wrap(vsi.ErrIOFailed, "close")
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", in)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return errors.Wrapf(err, "parse %s", in)
	}

	arena := geoblob.NewArena()
	features := make([]fgb.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		feature := fgb.Feature{Properties: f.Properties}
		if f.Geometry != nil {
			arena.Reset()
			g, err := geoblob.FromOrb(arena, f.Geometry)
			if err != nil {
				return errors.Wrapf(err, "feature %d", i)
			}
			if feature.Geometry, err = geoblob.Serialize(g); err != nil {
				return errors.Wrapf(err, "feature %d", i)
			}
		}
		features = append(features, feature)
	}

	opts := &fgb.Options{Name: a.cfg.LayerName, IncludeIndex: !a.cfg.NoIndex}
	n, err := functions.WriteFlatGeobuf(a.conn, a.fm, out, features, opts)
	if err != nil {
		return err
	}
	a.log.Info().Str("in", in).Str("out", out).Int("read", len(features)).Int("written", n).Msg("converted")
	return nil
}

func (a *app) info(path string) error {
	h, err := functions.ReadFlatGeobufMeta(a.conn, a.fm, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "name:      %s\n", h.Name)
	if h.Description != "" {
		fmt.Fprintf(a.out, "desc:      %s\n", h.Description)
	}
	fmt.Fprintf(a.out, "type:      %s\n", h.GeometryType)
	fmt.Fprintf(a.out, "features:  %d\n", h.FeaturesCount)
	fmt.Fprintf(a.out, "index:     %v\n", h.HasIndex)
	fmt.Fprintf(a.out, "envelope:  %v\n", h.Envelope)
	if h.CRS != nil {
		fmt.Fprintf(a.out, "crs:       EPSG:%d %s\n", h.CRS.Code, h.CRS.Name)
	}
	for _, c := range h.Columns {
		fmt.Fprintf(a.out, "column:    %s %s\n", c.Name, c.Type)
	}
	return nil
}

// dump prints one GeoJSON geometry per feature, simplified when a tolerance
// is configured.
func (a *app) dump(path string) error {
	features, err := functions.ReadFlatGeobuf(a.conn, a.fm, path)
	if err != nil {
		return err
	}
	blobs := make([][]byte, len(features))
	for i, f := range features {
		blobs[i] = f.Geometry
	}
	col := functions.BlobColumn(blobs...)

	if a.cfg.SimplifyTolerance > 0 {
		col, err = functions.SimplifyBatch(functions.NewLocalState(), col, functions.Constant(a.cfg.SimplifyTolerance, col.Len()))
		if err != nil {
			return err
		}
	}

	arena := geoblob.NewArena()
	text, err := functions.ExecuteUnary(col, func(b []byte) (string, error) {
		arena.Reset()
		return functions.AsGeoJSON(arena, b)
	})
	if err != nil {
		return err
	}
	for i, s := range text.Values {
		if text.IsNull(i) {
			fmt.Fprintln(a.out, "null")
			continue
		}
		fmt.Fprintln(a.out, s)
	}
	return nil
}

// dumpMetrics prints every sample gathered by g as "name{labels} value".
func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labels, value))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
