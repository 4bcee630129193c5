package geoblob

import (
	"github.com/cockroachdb/errors"
)

const arenaChunkSize = 4096

// node is one geometry in an arena. Points and line strings keep their
// vertices in coords; polygons keep all ring vertices in coords with
// cumulative vertex counts in ends; multi-geometries and collections only
// reference children. height is the nesting depth below the node, zero for
// leaves.
type node struct {
	kind     Kind
	layout   Layout
	coords   []float64
	ends     []uint32
	children []int32
	height   int
}

// Arena owns the nodes of transient geometry trees. Everything built by one
// arena is released together by Reset. An Arena is not safe for concurrent use.
type Arena struct {
	nodes      []node
	slab       []float64
	generation uint32
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Reset releases every node. Handles created before the reset become stale
// and are rejected by the constructors and the codec.
func (a *Arena) Reset() {
	a.nodes = a.nodes[:0]
	a.slab = a.slab[:0]
	a.generation++
}

// Len returns the number of live nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Generation returns the number of resets performed so far.
func (a *Arena) Generation() uint32 {
	return a.generation
}

// alloc hands out n float64s from the current slab chunk.
func (a *Arena) alloc(n int) []float64 {
	if n == 0 {
		return nil
	}
	if cap(a.slab)-len(a.slab) < n {
		size := arenaChunkSize
		if n > size {
			size = n
		}
		a.slab = make([]float64, 0, size)
	}
	start := len(a.slab)
	a.slab = a.slab[:start+n]
	return a.slab[start : start+n : start+n]
}

func (a *Arena) add(n node) Geometry {
	a.nodes = append(a.nodes, n)
	return Geometry{arena: a, gen: a.generation, idx: int32(len(a.nodes) - 1)}
}

func (a *Arena) owns(g Geometry) bool {
	return g.arena == a && g.gen == a.generation && g.idx >= 0 && int(g.idx) < len(a.nodes)
}

// NewPoint builds a point. Passing no ordinates builds an empty point.
func (a *Arena) NewPoint(layout Layout, ordinates ...float64) (Geometry, error) {
	if len(ordinates) != 0 && len(ordinates) != layout.Stride() {
		return Geometry{}, errors.Wrapf(ErrInvalidCoordinates, "point with %d ordinates in layout %s", len(ordinates), layout)
	}
	coords := a.alloc(len(ordinates))
	copy(coords, ordinates)
	return a.add(node{kind: KindPoint, layout: layout, coords: coords}), nil
}

// NewEmptyPoint builds POINT EMPTY.
func (a *Arena) NewEmptyPoint(layout Layout) Geometry {
	return a.add(node{kind: KindPoint, layout: layout})
}

// NewLineString builds a line string from a flat coordinate array.
func (a *Arena) NewLineString(layout Layout, coords []float64) (Geometry, error) {
	if len(coords)%layout.Stride() != 0 {
		return Geometry{}, errors.Wrapf(ErrInvalidCoordinates, "%d ordinates in layout %s", len(coords), layout)
	}
	owned := a.alloc(len(coords))
	copy(owned, coords)
	return a.add(node{kind: KindLineString, layout: layout, coords: owned}), nil
}

// NewPolygon builds a polygon; the first ring is the shell, the rest are holes.
func (a *Arena) NewPolygon(layout Layout, rings ...[]float64) (Geometry, error) {
	stride := layout.Stride()
	total := 0
	for i, r := range rings {
		if len(r)%stride != 0 {
			return Geometry{}, errors.Wrapf(ErrInvalidCoordinates, "ring %d has %d ordinates in layout %s", i, len(r), layout)
		}
		total += len(r)
	}
	coords := a.alloc(total)
	var ends []uint32
	if len(rings) > 0 {
		ends = make([]uint32, len(rings))
	}
	off := 0
	for i, r := range rings {
		off += copy(coords[off:], r)
		ends[i] = uint32(off / stride)
	}
	return a.add(node{kind: KindPolygon, layout: layout, coords: coords, ends: ends}), nil
}

// newPolygonFlat builds a polygon from pre-flattened coordinates and ring
// ends without copying; the caller hands ownership of both slices over.
func (a *Arena) newPolygonFlat(layout Layout, coords []float64, ends []uint32) Geometry {
	return a.add(node{kind: KindPolygon, layout: layout, coords: coords, ends: ends})
}

// NewMulti builds a multi-geometry or collection of the given kind. Every
// child must come from this arena's current generation, share the layout
// and, for multi-geometries, have the matching single kind. Trees nested
// deeper than the codec accepts are rejected.
func (a *Arena) NewMulti(kind Kind, layout Layout, children ...Geometry) (Geometry, error) {
	if !kind.IsCollection() {
		return Geometry{}, errors.Wrapf(ErrUnsupportedGeometryKind, "%s is not a multi-geometry", kind)
	}
	want := kind.childKind()
	var idx []int32
	if len(children) > 0 {
		idx = make([]int32, len(children))
	}
	height := 0
	for i, c := range children {
		if !a.owns(c) {
			return Geometry{}, errors.Wrapf(ErrForeignGeometry, "child %d of %s", i, kind)
		}
		n := &a.nodes[c.idx]
		if want != KindInvalid && n.kind != want {
			return Geometry{}, errors.Wrapf(ErrInvalidChild, "%s cannot contain %s", kind, n.kind)
		}
		if n.layout != layout {
			return Geometry{}, errors.Wrapf(ErrMixedLayout, "child %d is %s, parent is %s", i, n.layout, layout)
		}
		if n.height+1 > maxNestingDepth {
			return Geometry{}, errors.Wrapf(ErrInvalidChild, "nesting deeper than %d", maxNestingDepth)
		}
		height = max(height, n.height+1)
		idx[i] = c.idx
	}
	return a.add(node{kind: kind, layout: layout, children: idx, height: height}), nil
}

// NewCollection builds a GEOMETRYCOLLECTION.
func (a *Arena) NewCollection(layout Layout, children ...Geometry) (Geometry, error) {
	return a.NewMulti(KindGeometryCollection, layout, children...)
}

// NewEmpty builds an empty geometry of any known kind.
func (a *Arena) NewEmpty(kind Kind, layout Layout) (Geometry, error) {
	switch kind {
	case KindPoint:
		return a.NewEmptyPoint(layout), nil
	case KindLineString:
		return a.add(node{kind: KindLineString, layout: layout}), nil
	case KindPolygon:
		return a.add(node{kind: KindPolygon, layout: layout}), nil
	case KindMultiPoint, KindMultiLineString, KindMultiPolygon, KindGeometryCollection:
		return a.add(node{kind: kind, layout: layout}), nil
	default:
		return Geometry{}, errors.Wrapf(ErrUnsupportedGeometryKind, "kind tag %d", uint8(kind))
	}
}

// Geometry is a handle to a node in an Arena. The zero value is invalid.
type Geometry struct {
	arena *Arena
	gen   uint32
	idx   int32
}

// Valid reports whether g still refers to a live node.
func (g Geometry) Valid() bool {
	return g.arena != nil && g.arena.owns(g)
}

// Arena returns the arena that owns g.
func (g Geometry) Arena() *Arena {
	return g.arena
}

func (g Geometry) node() *node {
	if !g.Valid() {
		panic(errors.AssertionFailedf("geoblob: use of stale or zero geometry handle"))
	}
	return &g.arena.nodes[g.idx]
}

// Kind returns the geometry kind.
func (g Geometry) Kind() Kind { return g.node().kind }

// Layout returns the coordinate layout.
func (g Geometry) Layout() Layout { return g.node().layout }

// Coords returns the flat vertex array of a point, line string or polygon
// (all rings concatenated). The slice is owned by the arena.
func (g Geometry) Coords() []float64 { return g.node().coords }

// NumVertices returns the vertex count of a point, line string or polygon.
func (g Geometry) NumVertices() int {
	n := g.node()
	return len(n.coords) / n.layout.Stride()
}

// NumRings returns the number of rings of a polygon.
func (g Geometry) NumRings() int { return len(g.node().ends) }

// Ring returns the flat vertex array of ring i of a polygon.
func (g Geometry) Ring(i int) []float64 {
	n := g.node()
	stride := n.layout.Stride()
	start := uint32(0)
	if i > 0 {
		start = n.ends[i-1]
	}
	return n.coords[int(start)*stride : int(n.ends[i])*stride]
}

// NumChildren returns the number of children of a multi-geometry or collection.
func (g Geometry) NumChildren() int { return len(g.node().children) }

// Child returns child i of a multi-geometry or collection.
func (g Geometry) Child(i int) Geometry {
	n := g.node()
	return Geometry{arena: g.arena, gen: g.gen, idx: n.children[i]}
}

// IsEmpty reports whether the tree contains no vertices at all.
func (g Geometry) IsEmpty() bool {
	n := g.node()
	if !n.kind.IsCollection() {
		return len(n.coords) == 0
	}
	for i := range n.children {
		if !g.Child(i).IsEmpty() {
			return false
		}
	}
	return true
}

// Bounds walks the tree and returns its bounding box. It reports false for
// empty geometries.
func (g Geometry) Bounds() (BoundingBox, bool) {
	n := g.node()
	box := emptyBox(n.layout)
	g.extendBounds(&box)
	if box.MinX > box.MaxX {
		return BoundingBox{}, false
	}
	if !box.HasZ {
		box.MinZ, box.MaxZ = 0, 0
	}
	if !box.HasM {
		box.MinM, box.MaxM = 0, 0
	}
	return box, true
}

func (g Geometry) extendBounds(box *BoundingBox) {
	n := g.node()
	if !n.kind.IsCollection() {
		box.extendFlat(n.coords, n.layout)
		return
	}
	for i := range n.children {
		g.Child(i).extendBounds(box)
	}
}

// Flags are the header flag bits of a serialized geometry.
type Flags uint8

const (
	FlagHasBBox Flags = 1 << iota
	FlagHasZ
	FlagHasM

	knownFlags = FlagHasBBox | FlagHasZ | FlagHasM
)

// HeaderFlags derives the header kind and flag bits from the tree shape.
// The bounding box flag is set for every non-empty root.
func HeaderFlags(g Geometry) (Kind, Flags) {
	n := g.node()
	var f Flags
	if n.layout.HasZ() {
		f |= FlagHasZ
	}
	if n.layout.HasM() {
		f |= FlagHasM
	}
	if !g.IsEmpty() {
		f |= FlagHasBBox
	}
	return n.kind, f
}
