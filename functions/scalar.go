package functions

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/tingold/geoblob"
)

// IntersectsExtent reports whether the cached bounding boxes of two blobs
// intersect. A blob without a cached box, such as an empty geometry, never
// intersects anything.
func IntersectsExtent(left, right []byte) bool {
	lb, ok := geoblob.TryGetSerializedBoundingBox(left)
	if !ok {
		return false
	}
	rb, ok := geoblob.TryGetSerializedBoundingBox(right)
	if !ok {
		return false
	}
	return lb.Intersects(rb)
}

// IntersectsExtentBatch is IntersectsExtent over two blob columns.
func IntersectsExtentBatch(left, right Column[[]byte]) (Column[bool], error) {
	return ExecuteBinary(left, right, func(l, r []byte) (bool, error) {
		return IntersectsExtent(l, r), nil
	})
}

// Extent returns the bounding box of a blob, read from the header when it is
// cached. ok is false for empty geometries.
func Extent(a *geoblob.Arena, blob []byte) (box geoblob.BoundingBox, ok bool, err error) {
	if box, ok := geoblob.TryGetSerializedBoundingBox(blob); ok {
		return box, true, nil
	}
	g, err := geoblob.Deserialize(a, blob)
	if err != nil {
		return geoblob.BoundingBox{}, false, err
	}
	box, ok = g.Bounds()
	return box, ok, nil
}

// decode deserializes blob into a and converts it to orb. Empty points come
// back as a nil geometry.
func decode(a *geoblob.Arena, blob []byte) (orb.Geometry, error) {
	g, err := geoblob.Deserialize(a, blob)
	if err != nil {
		return nil, err
	}
	return geoblob.ToOrb(g)
}

func encode(a *geoblob.Arena, geom orb.Geometry) ([]byte, error) {
	if p, ok := geom.(orb.Point); ok && math.IsNaN(p[0]) && math.IsNaN(p[1]) {
		return geoblob.Serialize(a.NewEmptyPoint(geoblob.XY))
	}
	g, err := geoblob.FromOrb(a, geom)
	if err != nil {
		return nil, err
	}
	return geoblob.Serialize(g)
}

// Simplify applies Douglas-Peucker simplification with the given tolerance.
func Simplify(s *LocalState, blob []byte, tolerance float64) ([]byte, error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, errors.Wrapf(ErrInvalidInput, "tolerance %v", tolerance)
	}
	a := s.ResetAndGet()
	geom, err := decode(a, blob)
	if err != nil {
		return nil, err
	}
	if geom == nil {
		return blob, nil
	}
	return encode(a, simplify.DouglasPeucker(tolerance).Simplify(geom))
}

// SimplifyBatch simplifies a blob column with a per-row tolerance.
func SimplifyBatch(s *LocalState, blobs Column[[]byte], tolerance Column[float64]) (Column[[]byte], error) {
	return ExecuteBinary(blobs, tolerance, func(b []byte, tol float64) ([]byte, error) {
		return Simplify(s, b, tol)
	})
}

// AsGeoJSON renders a blob as a GeoJSON geometry object.
func AsGeoJSON(a *geoblob.Arena, blob []byte) (string, error) {
	geom, err := decode(a, blob)
	if err != nil {
		return "", err
	}
	if geom == nil {
		return `{"type":"Point","coordinates":[]}`, nil
	}
	b, err := geojson.NewGeometry(geom).MarshalJSON()
	if err != nil {
		return "", errors.Wrap(err, "functions: encode geojson")
	}
	return string(b), nil
}

// GeomFromGeoJSON parses a GeoJSON geometry object into a blob.
func GeomFromGeoJSON(a *geoblob.Arena, text string) ([]byte, error) {
	g, err := geojson.UnmarshalGeometry([]byte(text))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "functions: parse geojson"), ErrInvalidInput)
	}
	if g.Coordinates == nil && g.Geometries == nil {
		return nil, errors.Wrapf(ErrInvalidInput, "geojson %s without coordinates", g.Type)
	}
	geom := g.Geometry()
	if geom == nil {
		return nil, errors.Wrapf(ErrInvalidInput, "geojson type %q", g.Type)
	}
	return encode(a, geom)
}

// AsWKB renders a blob as little-endian WKB. An empty point is written with
// NaN coordinates.
func AsWKB(a *geoblob.Arena, blob []byte) ([]byte, error) {
	geom, err := decode(a, blob)
	if err != nil {
		return nil, err
	}
	if geom == nil {
		geom = orb.Point{math.NaN(), math.NaN()}
	}
	b, err := wkb.Marshal(geom)
	if err != nil {
		return nil, errors.Wrap(err, "functions: encode wkb")
	}
	return b, nil
}

// GeomFromWKB parses WKB into a blob.
func GeomFromWKB(a *geoblob.Arena, data []byte) ([]byte, error) {
	geom, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "functions: parse wkb"), ErrInvalidInput)
	}
	return encode(a, geom)
}

// AsText renders a blob as WKT.
func AsText(a *geoblob.Arena, blob []byte) (string, error) {
	geom, err := decode(a, blob)
	if err != nil {
		return "", err
	}
	if geom == nil {
		return "POINT EMPTY", nil
	}
	return wkt.MarshalString(geom), nil
}
