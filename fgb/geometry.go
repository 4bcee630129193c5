package fgb

import (
	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/tingold/geoblob"
)

// kindToFGB converts a blob geometry kind to its FlatGeobuf GeometryType.
func kindToFGB(k geoblob.Kind) flattypes.GeometryType {
	switch k {
	case geoblob.KindPoint:
		return flattypes.GeometryTypePoint
	case geoblob.KindMultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case geoblob.KindLineString:
		return flattypes.GeometryTypeLineString
	case geoblob.KindMultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case geoblob.KindPolygon:
		return flattypes.GeometryTypePolygon
	case geoblob.KindMultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case geoblob.KindGeometryCollection:
		return flattypes.GeometryTypeGeometryCollection
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// geometryToFGB converts a geometry tree to a FlatGeobuf writer.Geometry.
// FlatGeobuf output is written in XY only.
func geometryToFGB(g geoblob.Geometry, builder *flatbuffers.Builder) (*writer.Geometry, error) {
	if g.Layout() != geoblob.XY {
		return nil, errors.Wrapf(geoblob.ErrUnsupportedLayout, "fgb: cannot write %s coordinates", g.Layout())
	}
	fg := writer.NewGeometry(builder)
	fg.SetType(kindToFGB(g.Kind()))

	switch g.Kind() {
	case geoblob.KindPoint, geoblob.KindLineString:
		setXY(fg, g.Coords())

	case geoblob.KindPolygon:
		setXY(fg, g.Coords())
		setEnds(fg, ringEnds(g))

	case geoblob.KindMultiPoint:
		xy := make([]float64, 0, g.NumChildren()*2)
		for i := 0; i < g.NumChildren(); i++ {
			xy = append(xy, g.Child(i).Coords()...)
		}
		setXY(fg, xy)

	case geoblob.KindMultiLineString:
		var xy []float64
		ends := make([]uint32, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			xy = append(xy, g.Child(i).Coords()...)
			ends = append(ends, uint32(len(xy)/2))
		}
		setXY(fg, xy)
		setEnds(fg, ends)

	case geoblob.KindMultiPolygon, geoblob.KindGeometryCollection:
		parts := make([]writer.Geometry, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			part, err := geometryToFGB(g.Child(i), builder)
			if err != nil {
				return nil, err
			}
			parts = append(parts, *part)
		}
		if len(parts) > 0 {
			fg.SetParts(parts)
		}

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%s", g.Kind())
	}
	return fg, nil
}

func setXY(fg *writer.Geometry, xy []float64) {
	if len(xy) > 0 {
		fg.SetXY(xy)
	}
}

func setEnds(fg *writer.Geometry, ends []uint32) {
	if len(ends) > 0 {
		fg.SetEnds(ends)
	}
}

// ringEnds returns the cumulative vertex count at the end of each ring.
func ringEnds(g geoblob.Geometry) []uint32 {
	ends := make([]uint32, g.NumRings())
	total := 0
	for i := range ends {
		total += len(g.Ring(i)) / 2
		ends[i] = uint32(total)
	}
	return ends
}

// geomReader builds arena geometries from FlatGeobuf geometry tables.
type geomReader struct {
	arena  *geoblob.Arena
	layout geoblob.Layout
}

// vertices interleaves the xy, z and m vectors of fg for vertices [start, end).
func (r *geomReader) vertices(fg *flattypes.Geometry, start, end int) ([]float64, error) {
	n := fg.XyLength() / 2
	if start < 0 || end > n || start > end {
		return nil, errors.Wrapf(ErrInvalidData, "vertex range [%d,%d) of %d", start, end, n)
	}
	hasZ, hasM := r.layout.HasZ(), r.layout.HasM()
	if hasZ && fg.ZLength() < n || hasM && fg.MLength() < n {
		return nil, errors.Wrapf(ErrInvalidData, "%d vertices with %d z and %d m values", n, fg.ZLength(), fg.MLength())
	}
	out := make([]float64, 0, (end-start)*r.layout.Stride())
	for i := start; i < end; i++ {
		out = append(out, fg.Xy(2*i), fg.Xy(2*i+1))
		if hasZ {
			out = append(out, fg.Z(i))
		}
		if hasM {
			out = append(out, fg.M(i))
		}
	}
	return out, nil
}

// ranges returns the vertex ranges described by the ends vector, or a single
// range spanning every vertex when there is none.
func (r *geomReader) ranges(fg *flattypes.Geometry) [][2]int {
	n := fg.XyLength() / 2
	if fg.EndsLength() == 0 {
		if n == 0 {
			return nil
		}
		return [][2]int{{0, n}}
	}
	out := make([][2]int, 0, fg.EndsLength())
	start := 0
	for i := 0; i < fg.EndsLength(); i++ {
		end := int(fg.Ends(i))
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

// geometry converts fg. typ is used when fg carries no type of its own,
// which is how FlatGeobuf stores features of a single-type layer.
func (r *geomReader) geometry(fg *flattypes.Geometry, typ flattypes.GeometryType) (geoblob.Geometry, error) {
	if t := fg.Type(); t != flattypes.GeometryTypeUnknown {
		typ = t
	}
	a := r.arena

	switch typ {
	case flattypes.GeometryTypePoint:
		coords, err := r.vertices(fg, 0, fg.XyLength()/2)
		if err != nil {
			return geoblob.Geometry{}, err
		}
		if len(coords) == 0 {
			return a.NewEmptyPoint(r.layout), nil
		}
		return a.NewPoint(r.layout, coords[:r.layout.Stride()]...)

	case flattypes.GeometryTypeLineString:
		coords, err := r.vertices(fg, 0, fg.XyLength()/2)
		if err != nil {
			return geoblob.Geometry{}, err
		}
		return a.NewLineString(r.layout, coords)

	case flattypes.GeometryTypePolygon:
		return r.polygon(fg)

	case flattypes.GeometryTypeMultiPoint:
		n := fg.XyLength() / 2
		points := make([]geoblob.Geometry, 0, n)
		for i := 0; i < n; i++ {
			coords, err := r.vertices(fg, i, i+1)
			if err != nil {
				return geoblob.Geometry{}, err
			}
			p, err := a.NewPoint(r.layout, coords...)
			if err != nil {
				return geoblob.Geometry{}, err
			}
			points = append(points, p)
		}
		return a.NewMulti(geoblob.KindMultiPoint, r.layout, points...)

	case flattypes.GeometryTypeMultiLineString:
		var lines []geoblob.Geometry
		for _, rg := range r.ranges(fg) {
			coords, err := r.vertices(fg, rg[0], rg[1])
			if err != nil {
				return geoblob.Geometry{}, err
			}
			ls, err := a.NewLineString(r.layout, coords)
			if err != nil {
				return geoblob.Geometry{}, err
			}
			lines = append(lines, ls)
		}
		return a.NewMulti(geoblob.KindMultiLineString, r.layout, lines...)

	case flattypes.GeometryTypeMultiPolygon:
		if fg.PartsLength() == 0 {
			// A single polygon stored inline.
			if fg.XyLength() == 0 {
				return a.NewMulti(geoblob.KindMultiPolygon, r.layout)
			}
			poly, err := r.polygon(fg)
			if err != nil {
				return geoblob.Geometry{}, err
			}
			return a.NewMulti(geoblob.KindMultiPolygon, r.layout, poly)
		}
		polys, err := r.parts(fg, flattypes.GeometryTypePolygon)
		if err != nil {
			return geoblob.Geometry{}, err
		}
		return a.NewMulti(geoblob.KindMultiPolygon, r.layout, polys...)

	case flattypes.GeometryTypeGeometryCollection:
		children, err := r.parts(fg, flattypes.GeometryTypeUnknown)
		if err != nil {
			return geoblob.Geometry{}, err
		}
		return a.NewCollection(r.layout, children...)

	default:
		return geoblob.Geometry{}, errors.Wrapf(ErrUnsupportedType, "%s", flattypes.EnumNamesGeometryType[typ])
	}
}

func (r *geomReader) polygon(fg *flattypes.Geometry) (geoblob.Geometry, error) {
	var rings [][]float64
	for _, rg := range r.ranges(fg) {
		coords, err := r.vertices(fg, rg[0], rg[1])
		if err != nil {
			return geoblob.Geometry{}, err
		}
		rings = append(rings, coords)
	}
	return r.arena.NewPolygon(r.layout, rings...)
}

func (r *geomReader) parts(fg *flattypes.Geometry, typ flattypes.GeometryType) ([]geoblob.Geometry, error) {
	out := make([]geoblob.Geometry, 0, fg.PartsLength())
	for i := 0; i < fg.PartsLength(); i++ {
		var part flattypes.Geometry
		if !fg.Parts(&part, i) {
			return nil, errors.Wrapf(ErrInvalidData, "missing part %d", i)
		}
		g, err := r.geometry(&part, typ)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
