package fgb

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/tingold/geoblob"
	"github.com/tingold/geoblob/vsi"
)

// Write encodes features as a FlatGeobuf layer. Features whose geometry is
// NULL or empty are skipped because the spatial index cannot locate them;
// the number of features written is returned.
func Write(w io.Writer, features []Feature, opts *Options) (int, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	rows, geomType, err := prepare(features)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, ErrNoFeatures
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	s := inferSchema(rows)
	if !s.empty() {
		header.SetColumns(s.columns(builder))
	}
	if err := validate(rows, s); err != nil {
		return 0, err
	}

	if opts.CRS != nil {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		if opts.CRS.Code > 0 {
			crs.SetCode(int32(opts.CRS.Code))
		}
		if opts.CRS.Name != "" {
			crs.SetName(opts.CRS.Name)
		}
		switch {
		case opts.CRS.Description != "":
			crs.SetDescription(opts.CRS.Description)
		case opts.CRS.WKT != "":
			crs.SetDescription(opts.CRS.WKT)
		}
		header.SetCrs(crs)
	}

	gen := &featureGenerator{rows: rows, schema: s, arena: geoblob.NewArena()}
	fw := writer.NewWriter(header, opts.IncludeIndex, gen, nil)
	if _, err := fw.Write(w); err != nil {
		return 0, errors.Wrap(err, "fgb: write")
	}
	if gen.err != nil {
		return 0, gen.err
	}
	return len(rows), nil
}

// WriteFile writes features to path through fm, creating or truncating the
// file.
func WriteFile(fm *vsi.FileManager, path string, features []Feature, opts *Options) (int, error) {
	h, err := fm.Open(path, "wb")
	if err != nil {
		return 0, errors.Wrap(err, "fgb: create")
	}
	n, err := Write(vsi.NewWriter(h), features, opts)
	if rc := h.Close(); err == nil && rc != 0 {
		err = errors.Wrapf(vsi.ErrIOFailed, "close %q", path)
	}
	return n, err
}

// prepare drops NULL and empty geometries, validates the rest and picks the
// header geometry type: the shared kind, or Unknown for mixed layers.
func prepare(features []Feature) ([]Feature, flattypes.GeometryType, error) {
	rows := make([]Feature, 0, len(features))
	geomType := flattypes.GeometryTypeUnknown
	for i, f := range features {
		if f.Geometry == nil {
			continue
		}
		kind, err := geoblob.PeekKind(f.Geometry)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "feature %d", i)
		}
		if _, ok := geoblob.TryGetSerializedBoundingBox(f.Geometry); !ok {
			continue
		}
		t := kindToFGB(kind)
		if len(rows) == 0 {
			geomType = t
		} else if t != geomType {
			geomType = flattypes.GeometryTypeUnknown
		}
		rows = append(rows, f)
	}
	return rows, geomType, nil
}

// validate decodes every row once so that bad input fails before any bytes
// are written.
func validate(rows []Feature, s *schema) error {
	a := geoblob.NewArena()
	for i, row := range rows {
		a.Reset()
		g, err := geoblob.Deserialize(a, row.Geometry)
		if err != nil {
			return errors.Wrapf(err, "feature %d", i)
		}
		if g.Layout() != geoblob.XY {
			return errors.Wrapf(geoblob.ErrUnsupportedLayout, "feature %d: fgb: cannot write %s coordinates", i, g.Layout())
		}
		if _, err := s.encode(row.Properties); err != nil {
			return errors.Wrapf(err, "feature %d", i)
		}
	}
	return nil
}

// featureGenerator feeds rows to the FlatGeobuf writer. The writer interface
// cannot return errors, so the first failure is kept and generation stops.
type featureGenerator struct {
	rows   []Feature
	schema *schema
	arena  *geoblob.Arena
	index  int
	err    error
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.err != nil || g.index >= len(g.rows) {
		return nil
	}
	row := g.rows[g.index]
	g.index++

	f, err := g.build(row)
	if err != nil {
		g.err = errors.Wrapf(err, "feature %d", g.index-1)
		return nil
	}
	return f
}

func (g *featureGenerator) build(row Feature) (*writer.Feature, error) {
	g.arena.Reset()
	geom, err := geoblob.Deserialize(g.arena, row.Geometry)
	if err != nil {
		return nil, err
	}

	builder := flatbuffers.NewBuilder(1024)
	fg, err := geometryToFGB(geom, builder)
	if err != nil {
		return nil, err
	}
	feature := writer.NewFeature(builder)
	feature.SetGeometry(fg)

	props, err := g.schema.encode(row.Properties)
	if err != nil {
		return nil, err
	}
	if len(props) > 0 {
		feature.SetProperties(props)
	}
	return feature, nil
}
