package geoblob

import (
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is an axis-aligned box. Z and M intervals are only meaningful
// when HasZ / HasM are set.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
	MinZ, MaxZ             float64
	MinM, MaxM             float64
	HasZ, HasM             bool
}

// emptyBox returns a box that any vertex will extend.
func emptyBox(layout Layout) BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1),
		MinZ: math.Inf(1), MaxZ: math.Inf(-1),
		MinM: math.Inf(1), MaxM: math.Inf(-1),
		HasZ: layout.HasZ(),
		HasM: layout.HasM(),
	}
}

// extendFlat grows the box to cover a flat coordinate array of the given layout.
func (b *BoundingBox) extendFlat(coords []float64, layout Layout) {
	stride := layout.Stride()
	mi := layout.mIndex()
	for i := 0; i+stride <= len(coords); i += stride {
		x, y := coords[i], coords[i+1]
		b.MinX = math.Min(b.MinX, x)
		b.MinY = math.Min(b.MinY, y)
		b.MaxX = math.Max(b.MaxX, x)
		b.MaxY = math.Max(b.MaxY, y)
		if b.HasZ {
			z := coords[i+2]
			b.MinZ = math.Min(b.MinZ, z)
			b.MaxZ = math.Max(b.MaxZ, z)
		}
		if b.HasM {
			m := coords[i+mi]
			b.MinM = math.Min(b.MinM, m)
			b.MaxM = math.Max(b.MaxM, m)
		}
	}
}

// Extend returns the smallest box covering both b and o. Z and M are kept
// only when both boxes carry them.
func (b BoundingBox) Extend(o BoundingBox) BoundingBox {
	r := BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
		HasZ: b.HasZ && o.HasZ,
		HasM: b.HasM && o.HasM,
	}
	if r.HasZ {
		r.MinZ, r.MaxZ = math.Min(b.MinZ, o.MinZ), math.Max(b.MaxZ, o.MaxZ)
	}
	if r.HasM {
		r.MinM, r.MaxM = math.Min(b.MinM, o.MinM), math.Max(b.MaxM, o.MaxM)
	}
	return r
}

// Intersects reports whether every axis interval present on both boxes
// overlaps. Bounds are inclusive, so boxes sharing an edge intersect.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if b.MaxX < o.MinX || o.MaxX < b.MinX || b.MaxY < o.MinY || o.MaxY < b.MinY {
		return false
	}
	if b.HasZ && o.HasZ && (b.MaxZ < o.MinZ || o.MaxZ < b.MinZ) {
		return false
	}
	if b.HasM && o.HasM && (b.MaxM < o.MinM || o.MaxM < b.MinM) {
		return false
	}
	return true
}

// Contains reports whether the XY point lies inside the box (inclusive).
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Orb returns the XY extent as an orb.Bound.
func (b BoundingBox) Orb() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// BoxFromOrb converts an orb.Bound into a 2D box.
func BoxFromOrb(bound orb.Bound) BoundingBox {
	return BoundingBox{MinX: bound.Min[0], MinY: bound.Min[1], MaxX: bound.Max[0], MaxY: bound.Max[1]}
}

// doubles is the number of float64 values the box occupies in a blob.
func (b BoundingBox) doubles() int {
	n := 4
	if b.HasZ {
		n += 2
	}
	if b.HasM {
		n += 2
	}
	return n
}

func bboxDoubles(layout Layout) int {
	return BoundingBox{HasZ: layout.HasZ(), HasM: layout.HasM()}.doubles()
}
