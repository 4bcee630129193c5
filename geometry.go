package geoblob

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
)

// kindFromOrb returns the blob kind an orb.Geometry encodes to.
func kindFromOrb(geom orb.Geometry) Kind {
	switch geom.(type) {
	case orb.Point:
		return KindPoint
	case orb.MultiPoint:
		return KindMultiPoint
	case orb.LineString:
		return KindLineString
	case orb.MultiLineString:
		return KindMultiLineString
	case orb.Ring, orb.Polygon, orb.Bound:
		return KindPolygon
	case orb.MultiPolygon:
		return KindMultiPolygon
	case orb.Collection:
		return KindGeometryCollection
	default:
		return KindInvalid
	}
}

// FromOrb builds an XY tree in a from an orb geometry. Rings become
// single-ring polygons and bounds become rectangles.
func FromOrb(a *Arena, geom orb.Geometry) (Geometry, error) {
	if geom == nil {
		return Geometry{}, ErrNilGeometry
	}

	switch v := geom.(type) {
	case orb.Point:
		return pointFromOrb(a, v)

	case orb.MultiPoint:
		children := make([]Geometry, 0, len(v))
		for _, p := range v {
			c, err := pointFromOrb(a, p)
			if err != nil {
				return Geometry{}, err
			}
			children = append(children, c)
		}
		return a.NewMulti(KindMultiPoint, XY, children...)

	case orb.LineString:
		return a.NewLineString(XY, pointsToXY(v))

	case orb.MultiLineString:
		children := make([]Geometry, 0, len(v))
		for _, ls := range v {
			c, err := a.NewLineString(XY, pointsToXY(ls))
			if err != nil {
				return Geometry{}, err
			}
			children = append(children, c)
		}
		return a.NewMulti(KindMultiLineString, XY, children...)

	case orb.Ring:
		return a.NewPolygon(XY, pointsToXY(v))

	case orb.Polygon:
		return polygonFromOrb(a, v)

	case orb.Bound:
		return polygonFromOrb(a, boundToPolygon(v))

	case orb.MultiPolygon:
		children := make([]Geometry, 0, len(v))
		for _, poly := range v {
			c, err := polygonFromOrb(a, poly)
			if err != nil {
				return Geometry{}, err
			}
			children = append(children, c)
		}
		return a.NewMulti(KindMultiPolygon, XY, children...)

	case orb.Collection:
		children := make([]Geometry, 0, len(v))
		for _, child := range v {
			c, err := FromOrb(a, child)
			if err != nil {
				return Geometry{}, err
			}
			children = append(children, c)
		}
		return a.NewCollection(XY, children...)

	default:
		return Geometry{}, errors.Wrapf(ErrUnsupportedGeometryKind, "orb type %T", geom)
	}
}

// pointFromOrb maps the NaN point ToOrb emits for empty children back to an
// empty point.
func pointFromOrb(a *Arena, p orb.Point) (Geometry, error) {
	if math.IsNaN(p[0]) && math.IsNaN(p[1]) {
		return a.NewEmptyPoint(XY), nil
	}
	return a.NewPoint(XY, p[0], p[1])
}

func polygonFromOrb(a *Arena, poly orb.Polygon) (Geometry, error) {
	rings := make([][]float64, 0, len(poly))
	for _, r := range poly {
		rings = append(rings, pointsToXY(r))
	}
	return a.NewPolygon(XY, rings...)
}

// ToOrb converts an XY tree to orb. orb is strictly two dimensional, so Z
// and M trees fail with ErrUnsupportedLayout rather than losing ordinates.
// orb has no empty point: a top-level empty point converts to nil, and one
// inside a multi point or collection becomes a NaN point so the child count
// is kept.
func ToOrb(g Geometry) (orb.Geometry, error) {
	if !g.Valid() {
		return nil, ErrForeignGeometry
	}
	if g.Layout() != XY {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "orb cannot represent %s", g.Layout())
	}
	return toOrb(g), nil
}

func toOrb(g Geometry) orb.Geometry {
	switch g.Kind() {
	case KindPoint:
		c := g.Coords()
		if len(c) < 2 {
			return nil
		}
		return orb.Point{c[0], c[1]}

	case KindLineString:
		return orb.LineString(xyToPoints(g.Coords()))

	case KindPolygon:
		return polygonToOrb(g)

	case KindMultiPoint:
		mp := make(orb.MultiPoint, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			mp = append(mp, childPointToOrb(g.Child(i)))
		}
		return mp

	case KindMultiLineString:
		mls := make(orb.MultiLineString, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			mls = append(mls, orb.LineString(xyToPoints(g.Child(i).Coords())))
		}
		return mls

	case KindMultiPolygon:
		mp := make(orb.MultiPolygon, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			mp = append(mp, polygonToOrb(g.Child(i)))
		}
		return mp

	case KindGeometryCollection:
		coll := make(orb.Collection, 0, g.NumChildren())
		for i := 0; i < g.NumChildren(); i++ {
			child := g.Child(i)
			if child.Kind() == KindPoint {
				coll = append(coll, childPointToOrb(child))
				continue
			}
			coll = append(coll, toOrb(child))
		}
		return coll

	default:
		return nil
	}
}

func childPointToOrb(g Geometry) orb.Point {
	c := g.Coords()
	if len(c) < 2 {
		return orb.Point{math.NaN(), math.NaN()}
	}
	return orb.Point{c[0], c[1]}
}

func polygonToOrb(g Geometry) orb.Polygon {
	poly := make(orb.Polygon, 0, g.NumRings())
	for i := 0; i < g.NumRings(); i++ {
		poly = append(poly, orb.Ring(xyToPoints(g.Ring(i))))
	}
	return poly
}

func pointsToXY[P ~[]orb.Point](pts P) []float64 {
	xy := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

func xyToPoints(xy []float64) []orb.Point {
	pts := make([]orb.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		pts = append(pts, orb.Point{xy[i], xy[i+1]})
	}
	return pts
}

func boundToPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{
		orb.Ring{
			{b.Min[0], b.Min[1]},
			{b.Max[0], b.Min[1]},
			{b.Max[0], b.Max[1]},
			{b.Min[0], b.Max[1]},
			{b.Min[0], b.Min[1]},
		},
	}
}
