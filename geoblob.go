// Package geoblob implements the serialized geometry value used by the
// spatial extension: a self-describing little-endian blob with a cached
// bounding box at a fixed offset, and an index-based arena that builds and
// walks geometry trees decoded from (or encoded into) that blob.
package geoblob

import (
	"github.com/cockroachdb/errors"
)

// Common errors returned by this package.
var (
	ErrNilGeometry             = errors.New("geoblob: nil geometry")
	ErrMalformedGeometry       = errors.New("geoblob: malformed geometry")
	ErrUnsupportedGeometryKind = errors.New("geoblob: unsupported geometry kind")
	ErrUnsupportedLayout       = errors.New("geoblob: unsupported coordinate layout")
	ErrForeignGeometry         = errors.New("geoblob: geometry belongs to another arena")
	ErrInvalidChild            = errors.New("geoblob: invalid child geometry")
	ErrMixedLayout             = errors.New("geoblob: mixed coordinate layouts")
	ErrInvalidCoordinates      = errors.New("geoblob: coordinate count does not match layout")
)

// FormatVersion is written into every blob header. Changing tag values or
// field order requires bumping it.
const FormatVersion = 1

// Kind is the geometry kind tag stored in the first header byte.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPoint
	KindLineString
	KindPolygon
	KindMultiPoint
	KindMultiLineString
	KindMultiPolygon
	KindGeometryCollection
)

var kindNames = [...]string{
	KindInvalid:            "INVALID",
	KindPoint:              "POINT",
	KindLineString:         "LINESTRING",
	KindPolygon:            "POLYGON",
	KindMultiPoint:         "MULTIPOINT",
	KindMultiLineString:    "MULTILINESTRING",
	KindMultiPolygon:       "MULTIPOLYGON",
	KindGeometryCollection: "GEOMETRYCOLLECTION",
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindPoint && k <= KindGeometryCollection
}

// IsCollection reports whether geometries of kind k hold child geometries.
func (k Kind) IsCollection() bool {
	return k >= KindMultiPoint && k <= KindGeometryCollection
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// childKind returns the kind every child of a multi-geometry must have.
// Collections accept any kind and return KindInvalid.
func (k Kind) childKind() Kind {
	switch k {
	case KindMultiPoint:
		return KindPoint
	case KindMultiLineString:
		return KindLineString
	case KindMultiPolygon:
		return KindPolygon
	default:
		return KindInvalid
	}
}

// Layout describes which ordinates each vertex carries.
type Layout uint8

const (
	XY Layout = iota
	XYZ
	XYM
	XYZM
)

// Stride returns the number of float64 values per vertex.
func (l Layout) Stride() int {
	switch l {
	case XYZ, XYM:
		return 3
	case XYZM:
		return 4
	default:
		return 2
	}
}

// HasZ reports whether vertices carry a Z ordinate.
func (l Layout) HasZ() bool { return l == XYZ || l == XYZM }

// HasM reports whether vertices carry an M ordinate.
func (l Layout) HasM() bool { return l == XYM || l == XYZM }

// mIndex is the position of the M ordinate within a vertex.
func (l Layout) mIndex() int {
	if l == XYZM {
		return 3
	}
	return 2
}

func (l Layout) String() string {
	switch l {
	case XYZ:
		return "XYZ"
	case XYM:
		return "XYM"
	case XYZM:
		return "XYZM"
	default:
		return "XY"
	}
}

// LayoutFor returns the layout carrying the requested extra ordinates.
func LayoutFor(hasZ, hasM bool) Layout {
	switch {
	case hasZ && hasM:
		return XYZM
	case hasZ:
		return XYZ
	case hasM:
		return XYM
	default:
		return XY
	}
}
