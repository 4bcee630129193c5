package geoblob

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/tingold/geoblob/internal/metrics"
)

// Blob layout, little-endian:
//
//	0  uint8  kind
//	1  uint8  flags
//	2  uint8  format version
//	3  uint8  reserved
//	4  uint32 reserved
//	8  bounding box, 4/6/8 float64 when FlagHasBBox is set
//	   root record
//
// Records start 8-byte aligned with a uint32 kind and a uint32 count.
// Points and line strings follow with count vertices. Polygons follow with
// count ring lengths, padded to 8 bytes, then the vertices. Multi-geometries
// and collections follow with count child offsets relative to the record
// start, padded to 8 bytes, then the child records in order.
const (
	headerSize       = 8
	recordHeaderSize = 8
	bboxOffset       = headerSize

	// maxNestingDepth bounds recursion on hostile input and the depth of
	// trees the arena will build.
	maxNestingDepth = 64
)

var le = binary.LittleEndian

func pad8(n int) int {
	return (8 - n%8) % 8
}

// SerializedSize returns the exact number of bytes Serialize will produce.
func SerializedSize(g Geometry) (int, error) {
	if !g.Valid() {
		return 0, ErrForeignGeometry
	}
	size := headerSize + recordSize(g)
	if _, flags := HeaderFlags(g); flags&FlagHasBBox != 0 {
		size += bboxDoubles(g.Layout()) * 8
	}
	return size, nil
}

func recordSize(g Geometry) int {
	n := g.node()
	switch {
	case n.kind == KindPolygon:
		return recordHeaderSize + 4*len(n.ends) + pad8(4*len(n.ends)) + 8*len(n.coords)
	case n.kind.IsCollection():
		size := recordHeaderSize + 4*len(n.children) + pad8(4*len(n.children))
		for i := range n.children {
			size += recordSize(g.Child(i))
		}
		return size
	default:
		return recordHeaderSize + 8*len(n.coords)
	}
}

// Serialize encodes the tree rooted at g into a new blob. The output is
// deterministic and sized exactly by SerializedSize.
func Serialize(g Geometry) ([]byte, error) {
	size, err := SerializedSize(g)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)

	kind, flags := HeaderFlags(g)
	buf[0] = byte(kind)
	buf[1] = byte(flags)
	buf[2] = FormatVersion

	off := headerSize
	if flags&FlagHasBBox != 0 {
		box, _ := g.Bounds()
		off = putBox(buf, off, box)
	}
	off = writeRecord(buf, off, g)
	if off != size {
		return nil, errors.AssertionFailedf("geoblob: wrote %d bytes, expected %d", off, size)
	}

	metrics.ObserveSerialize(size)
	return buf, nil
}

func putFloat(buf []byte, off int, v float64) int {
	le.PutUint64(buf[off:], math.Float64bits(v))
	return off + 8
}

func putBox(buf []byte, off int, b BoundingBox) int {
	off = putFloat(buf, off, b.MinX)
	off = putFloat(buf, off, b.MinY)
	off = putFloat(buf, off, b.MaxX)
	off = putFloat(buf, off, b.MaxY)
	if b.HasZ {
		off = putFloat(buf, off, b.MinZ)
		off = putFloat(buf, off, b.MaxZ)
	}
	if b.HasM {
		off = putFloat(buf, off, b.MinM)
		off = putFloat(buf, off, b.MaxM)
	}
	return off
}

func writeRecord(buf []byte, off int, g Geometry) int {
	n := g.node()
	start := off
	le.PutUint32(buf[off:], uint32(n.kind))

	switch {
	case n.kind == KindPolygon:
		le.PutUint32(buf[off+4:], uint32(len(n.ends)))
		off += recordHeaderSize
		prev := uint32(0)
		for _, end := range n.ends {
			le.PutUint32(buf[off:], end-prev)
			prev = end
			off += 4
		}
		off += pad8(4 * len(n.ends))

	case n.kind.IsCollection():
		le.PutUint32(buf[off+4:], uint32(len(n.children)))
		off += recordHeaderSize
		table := off
		off += 4*len(n.children) + pad8(4*len(n.children))
		for i := range n.children {
			le.PutUint32(buf[table+4*i:], uint32(off-start))
			off = writeRecord(buf, off, g.Child(i))
		}
		return off

	default:
		le.PutUint32(buf[off+4:], uint32(len(n.coords)/n.layout.Stride()))
		off += recordHeaderSize
	}

	for _, v := range n.coords {
		off = putFloat(buf, off, v)
	}
	return off
}

// TryGetSerializedBoundingBox reads the cached bounding box from the blob
// header without looking at the payload. It reports false when the blob has
// no cached box, carries an unknown kind or is too short.
func TryGetSerializedBoundingBox(blob []byte) (BoundingBox, bool) {
	box, ok := peekBox(blob)
	metrics.ObserveBoundingBox(ok)
	return box, ok
}

func peekBox(blob []byte) (BoundingBox, bool) {
	if len(blob) < headerSize {
		return BoundingBox{}, false
	}
	if !Kind(blob[0]).Valid() || blob[2] != FormatVersion {
		return BoundingBox{}, false
	}
	flags := Flags(blob[1])
	if flags&FlagHasBBox == 0 || flags&^knownFlags != 0 || reservedSet(blob) {
		return BoundingBox{}, false
	}
	box := BoundingBox{HasZ: flags&FlagHasZ != 0, HasM: flags&FlagHasM != 0}
	if len(blob) < bboxOffset+8*box.doubles() {
		return BoundingBox{}, false
	}
	off := bboxOffset
	next := func() float64 {
		v := math.Float64frombits(le.Uint64(blob[off:]))
		off += 8
		return v
	}
	box.MinX, box.MinY, box.MaxX, box.MaxY = next(), next(), next(), next()
	if box.HasZ {
		box.MinZ, box.MaxZ = next(), next()
	}
	if box.HasM {
		box.MinM, box.MaxM = next(), next()
	}
	return box, true
}

func reservedSet(blob []byte) bool {
	return blob[3] != 0 || le.Uint32(blob[4:]) != 0
}

// PeekKind returns the kind tag from the blob header.
func PeekKind(blob []byte) (Kind, error) {
	if len(blob) < headerSize {
		return KindInvalid, errors.Wrapf(ErrMalformedGeometry, "blob of %d bytes has no header", len(blob))
	}
	k := Kind(blob[0])
	if !k.Valid() {
		return KindInvalid, errors.Wrapf(ErrMalformedGeometry, "unknown kind tag %d", blob[0])
	}
	return k, nil
}

// Deserialize decodes a blob into a tree owned by a. Any inconsistency
// between declared and actual lengths fails with ErrMalformedGeometry.
func Deserialize(a *Arena, blob []byte) (Geometry, error) {
	g, err := deserialize(a, blob)
	metrics.ObserveDeserialize(len(blob), err)
	return g, err
}

func deserialize(a *Arena, blob []byte) (Geometry, error) {
	kind, err := PeekKind(blob)
	if err != nil {
		return Geometry{}, err
	}
	if blob[2] != FormatVersion {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "unsupported format version %d", blob[2])
	}
	flags := Flags(blob[1])
	if flags&^knownFlags != 0 {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "unknown flag bits %#x", uint8(flags))
	}
	if reservedSet(blob) {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "nonzero reserved header bytes")
	}

	d := decoder{
		arena:  a,
		buf:    blob,
		layout: LayoutFor(flags&FlagHasZ != 0, flags&FlagHasM != 0),
	}
	off := headerSize
	if flags&FlagHasBBox != 0 {
		off += 8 * bboxDoubles(d.layout)
		if off > len(blob) {
			return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "bounding box exceeds blob of %d bytes", len(blob))
		}
	}

	g, end, err := d.record(off, 0)
	if err != nil {
		return Geometry{}, err
	}
	if g.Kind() != kind {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "header kind %s does not match root record %s", kind, g.Kind())
	}
	if end != len(blob) {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "%d trailing bytes", len(blob)-end)
	}
	if empty := g.IsEmpty(); (flags&FlagHasBBox != 0) == empty {
		return Geometry{}, errors.Wrapf(ErrMalformedGeometry, "bounding box flag disagrees with empty=%v", empty)
	}
	return g, nil
}

type decoder struct {
	arena  *Arena
	buf    []byte
	layout Layout
}

func (d *decoder) need(off int, n uint64, what string) error {
	if off < 0 || uint64(off)+n > uint64(len(d.buf)) {
		return errors.Wrapf(ErrMalformedGeometry, "%s at offset %d needs %d bytes, blob has %d", what, off, n, len(d.buf))
	}
	return nil
}

func (d *decoder) floats(off int, count int) []float64 {
	out := d.arena.alloc(count)
	for i := range out {
		out[i] = math.Float64frombits(le.Uint64(d.buf[off+8*i:]))
	}
	return out
}

// record decodes the record at off and returns the offset just past it.
func (d *decoder) record(off int, depth int) (Geometry, int, error) {
	if depth > maxNestingDepth {
		return Geometry{}, 0, errors.Wrapf(ErrMalformedGeometry, "nesting deeper than %d", maxNestingDepth)
	}
	if err := d.need(off, recordHeaderSize, "record header"); err != nil {
		return Geometry{}, 0, err
	}
	start := off
	raw := le.Uint32(d.buf[off:])
	kind := Kind(raw)
	if uint32(kind) != raw {
		kind = KindInvalid
	}
	count := uint64(le.Uint32(d.buf[off+4:]))
	off += recordHeaderSize
	stride := uint64(d.layout.Stride())

	switch kind {
	case KindPoint, KindLineString:
		if kind == KindPoint && count > 1 {
			return Geometry{}, 0, errors.Wrapf(ErrMalformedGeometry, "point with %d vertices", count)
		}
		if err := d.need(off, count*stride*8, "vertices"); err != nil {
			return Geometry{}, 0, err
		}
		n := int(count * stride)
		g := d.arena.add(node{kind: kind, layout: d.layout, coords: d.floats(off, n)})
		return g, off + 8*n, nil

	case KindPolygon:
		table := 4*count + uint64(pad8(int(4*(count%2))))
		if err := d.need(off, table, "ring table"); err != nil {
			return Geometry{}, 0, err
		}
		var ends []uint32
		if count > 0 {
			ends = make([]uint32, count)
		}
		total := uint64(0)
		for i := range ends {
			total += uint64(le.Uint32(d.buf[off+4*i:]))
			if total > math.MaxUint32 {
				return Geometry{}, 0, errors.Wrapf(ErrMalformedGeometry, "ring lengths overflow")
			}
			ends[i] = uint32(total)
		}
		off += int(table)
		if err := d.need(off, total*stride*8, "ring vertices"); err != nil {
			return Geometry{}, 0, err
		}
		n := int(total * stride)
		g := d.arena.newPolygonFlat(d.layout, d.floats(off, n), ends)
		return g, off + 8*n, nil

	case KindMultiPoint, KindMultiLineString, KindMultiPolygon, KindGeometryCollection:
		table := 4*count + uint64(pad8(int(4*(count%2))))
		if err := d.need(off, table, "child offset table"); err != nil {
			return Geometry{}, 0, err
		}
		want := kind.childKind()
		var children []int32
		if count > 0 {
			children = make([]int32, count)
		}
		cursor := off + int(table)
		height := 0
		for i := range children {
			rel := int(le.Uint32(d.buf[off+4*i:]))
			if start+rel != cursor {
				return Geometry{}, 0, errors.Wrapf(ErrMalformedGeometry, "child %d offset %d, expected %d", i, rel, cursor-start)
			}
			child, next, err := d.record(cursor, depth+1)
			if err != nil {
				return Geometry{}, 0, err
			}
			if want != KindInvalid && child.Kind() != want {
				return Geometry{}, 0, errors.Wrapf(ErrMalformedGeometry, "%s contains %s", kind, child.Kind())
			}
			children[i] = child.idx
			height = max(height, d.arena.nodes[child.idx].height+1)
			cursor = next
		}
		g := d.arena.add(node{kind: kind, layout: d.layout, children: children, height: height})
		return g, cursor, nil

	default:
		_, err := d.arena.NewEmpty(kind, d.layout)
		return Geometry{}, 0, errors.Mark(errors.Wrapf(err, "record tag %d at offset %d", raw, start), ErrMalformedGeometry)
	}
}
