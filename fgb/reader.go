package fgb

import (
	"github.com/cockroachdb/errors"
	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"

	"github.com/tingold/geoblob"
	"github.com/tingold/geoblob/vsi"
)

// Reader provides read access to a FlatGeobuf file.
type Reader struct {
	fgb   *flatgeobuf.FlatGeoBuf
	arena *geoblob.Arena
}

// Open reads the file at path through fm. Connection-prefixed paths are
// served by that connection's filesystem.
func Open(fm *vsi.FileManager, path string) (*Reader, error) {
	h, err := fm.Open(path, "rb")
	if err != nil {
		return nil, errors.Wrap(err, "fgb: open")
	}
	data, err := vsi.ReadAll(h)
	if rc := h.Close(); err == nil && rc != 0 {
		err = errors.Wrapf(vsi.ErrIOFailed, "close %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fgb: read %q", path)
	}
	return NewReaderFromData(data)
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte) (*Reader, error) {
	f, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "fgb: parse header"), ErrInvalidData)
	}
	if f.Header() == nil {
		return nil, errors.Wrap(ErrInvalidData, "missing header")
	}
	return &Reader{fgb: f, arena: geoblob.NewArena()}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		HasZ:          h.HasZ(),
		HasM:          h.HasM(),
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if h.EnvelopeLength() >= 4 {
		header.Envelope = [4]float64{h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3)}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
			WKT:         string(crs.Wkt()),
		}
	}

	if n := h.ColumnsLength(); n > 0 {
		header.Columns = make([]ColumnInfo, 0, n)
		for i := 0; i < n; i++ {
			var col flattypes.Column
			if h.Columns(&col, i) {
				header.Columns = append(header.Columns, ColumnInfo{
					Name:        string(col.Name()),
					Type:        flattypes.EnumNamesColumnType[col.Type()],
					Title:       string(col.Title()),
					Description: string(col.Description()),
					Nullable:    col.Nullable(),
				})
			}
		}
	}
	return header
}

// ReadAll returns every feature. The FlatGeobuf Go reader only iterates
// features through the spatial index, so files written without one fail
// with ErrNoIndex.
func (r *Reader) ReadAll() ([]Feature, error) {
	h := r.fgb.Header()
	if h.FeaturesCount() == 0 {
		return nil, nil
	}
	if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
		return nil, ErrNoIndex
	}
	return r.search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
}

// Search returns the features whose bounding boxes intersect box.
func (r *Reader) Search(box geoblob.BoundingBox) ([]Feature, error) {
	if r.fgb.Header().IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	return r.search(box.MinX, box.MinY, box.MaxX, box.MaxY)
}

func (r *Reader) search(minX, minY, maxX, maxY float64) ([]Feature, error) {
	found, err := r.fgb.Search(minX, minY, maxX, maxY)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "fgb: search"), ErrInvalidData)
	}
	h := r.fgb.Header()
	out := make([]Feature, 0, len(found))
	for i, ff := range found {
		f, err := r.convertFeature(ff, h)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		out = append(out, f)
	}
	return out, nil
}

// Close releases the file data. The reader must not be used afterwards.
func (r *Reader) Close() error {
	r.fgb = nil
	r.arena = nil
	return nil
}

// convertFeature decodes one feature into a blob and its properties. The
// reader's arena is reset per feature.
func (r *Reader) convertFeature(ff *flattypes.Feature, h *flattypes.Header) (Feature, error) {
	var geom flattypes.Geometry
	if ff.Geometry(&geom) == nil {
		return Feature{}, errors.Wrap(ErrInvalidData, "feature without geometry")
	}

	r.arena.Reset()
	gr := geomReader{arena: r.arena, layout: geoblob.LayoutFor(h.HasZ(), h.HasM())}
	g, err := gr.geometry(&geom, h.GeometryType())
	if err != nil {
		return Feature{}, err
	}
	blob, err := geoblob.Serialize(g)
	if err != nil {
		return Feature{}, err
	}

	var props []byte
	if n := ff.PropertiesLength(); n > 0 {
		props = make([]byte, n)
		for i := range props {
			props[i] = ff.Properties(i)
		}
	}
	p, err := decodeProperties(props, h)
	if err != nil {
		return Feature{}, err
	}
	return Feature{Geometry: blob, Properties: p}, nil
}
