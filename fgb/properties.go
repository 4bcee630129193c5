package fgb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"
)

// schema is the column layout shared by every feature of a layer.
type schema struct {
	names []string
	types []flattypes.ColumnType
}

// inferSchema collects every property name across features, sorted by name,
// and picks for each the most general type its values need.
func inferSchema(features []Feature) *schema {
	types := make(map[string]flattypes.ColumnType)
	for _, f := range features {
		for name, value := range f.Properties {
			if value == nil {
				if _, ok := types[name]; !ok {
					types[name] = flattypes.ColumnTypeString
				}
				continue
			}
			t := inferColumnType(value)
			if prev, ok := types[name]; ok {
				t = promoteColumnType(prev, t)
			}
			types[name] = t
		}
	}

	s := &schema{}
	for name := range types {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	s.types = make([]flattypes.ColumnType, len(s.names))
	for i, name := range s.names {
		s.types[i] = types[name]
	}
	return s
}

func (s *schema) empty() bool { return len(s.names) == 0 }

func (s *schema) columns(builder *flatbuffers.Builder) []*writer.Column {
	cols := make([]*writer.Column, len(s.names))
	for i, name := range s.names {
		col := writer.NewColumn(builder)
		col.SetName(name)
		col.SetTitle(name) // the JS reader keys on title
		col.SetType(s.types[i])
		col.SetNullable(true)
		cols[i] = col
	}
	return cols
}

// encode writes props as FlatGeobuf property bytes: for each non-null value
// a little-endian uint16 column index followed by the value. Values are
// emitted in column order.
func (s *schema) encode(props geojson.Properties) ([]byte, error) {
	if len(props) == 0 || s.empty() {
		return nil, nil
	}
	var buf []byte
	for i, name := range s.names {
		value, ok := props[name]
		if !ok || value == nil {
			continue
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(i))
		var err error
		buf, err = appendValue(buf, value, s.types[i])
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", name)
		}
	}
	return buf, nil
}

// inferColumnType determines the FlatGeobuf column type for a Go value.
func inferColumnType(value any) flattypes.ColumnType {
	switch v := value.(type) {
	case bool:
		return flattypes.ColumnTypeBool
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return flattypes.ColumnTypeInt
		}
		return flattypes.ColumnTypeLong
	case int8, int16, int32:
		return flattypes.ColumnTypeInt
	case int64:
		return flattypes.ColumnTypeLong
	case uint, uint8, uint16, uint32:
		return flattypes.ColumnTypeUInt
	case uint64:
		return flattypes.ColumnTypeULong
	case float32:
		return flattypes.ColumnTypeFloat
	case float64:
		return flattypes.ColumnTypeDouble
	case string:
		return flattypes.ColumnTypeString
	case []byte:
		return flattypes.ColumnTypeBinary
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeJson
	}
}

var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   0,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  2,
	flattypes.ColumnTypeShort:  3,
	flattypes.ColumnTypeUShort: 4,
	flattypes.ColumnTypeInt:    5,
	flattypes.ColumnTypeUInt:   6,
	flattypes.ColumnTypeLong:   7,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  9,
	flattypes.ColumnTypeDouble: 10,
}

// promoteColumnType returns the more general of two column types.
func promoteColumnType(a, b flattypes.ColumnType) flattypes.ColumnType {
	switch {
	case a == b:
		return a
	case a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson:
		return flattypes.ColumnTypeJson
	case a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString:
		return flattypes.ColumnTypeString
	}
	ra, okA := numericRank[a]
	rb, okB := numericRank[b]
	if !okA || !okB {
		return flattypes.ColumnTypeJson
	}
	if ra > rb {
		return a
	}
	return b
}

// appendValue encodes value as column type t.
func appendValue(buf []byte, value any, t flattypes.ColumnType) ([]byte, error) {
	le := binary.LittleEndian
	mismatch := func() ([]byte, error) {
		return nil, errors.Wrapf(ErrPropertyMismatch, "%T as %s", value, flattypes.EnumNamesColumnType[t])
	}

	switch t {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		if !ok {
			return mismatch()
		}
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		return append(buf, byte(v)), nil

	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint16(buf, uint16(v)), nil

	case flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint32(buf, uint32(v)), nil

	case flattypes.ColumnTypeLong:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint64(buf, uint64(v)), nil

	case flattypes.ColumnTypeULong:
		v, ok := toUint64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint64(buf, v), nil

	case flattypes.ColumnTypeFloat:
		v, ok := toFloat64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint32(buf, math.Float32bits(float32(v))), nil

	case flattypes.ColumnTypeDouble:
		v, ok := toFloat64(value)
		if !ok {
			return mismatch()
		}
		return le.AppendUint64(buf, math.Float64bits(v)), nil

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime:
		s, err := toString(value)
		if err != nil {
			return nil, err
		}
		return appendSized(buf, []byte(s)), nil

	case flattypes.ColumnTypeJson:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "fgb: encode json property")
		}
		return appendSized(buf, b), nil

	case flattypes.ColumnTypeBinary:
		b, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		return appendSized(buf, b), nil

	default:
		return nil, errors.Wrapf(ErrInvalidColumn, "type %d", t)
	}
}

// appendSized writes a uint32 byte length followed by b, the FlatGeobuf
// encoding of strings, JSON and binary values.
func appendSized(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// decodeProperties decodes FlatGeobuf property bytes against the header's
// column schema.
func decodeProperties(data []byte, header *flattypes.Header) (geojson.Properties, error) {
	if len(data) == 0 || header == nil {
		return nil, nil
	}
	props := make(geojson.Properties)
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return nil, errors.Wrapf(ErrInvalidData, "truncated column index at byte %d", off)
		}
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if idx >= header.ColumnsLength() || !header.Columns(&col, idx) {
			return nil, errors.Wrapf(ErrInvalidColumn, "column index %d of %d", idx, header.ColumnsLength())
		}
		value, n, err := readValue(data[off:], col.Type())
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", col.Name())
		}
		off += n
		props[string(col.Name())] = value
	}
	return props, nil
}

var fixedWidth = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   1,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  1,
	flattypes.ColumnTypeShort:  2,
	flattypes.ColumnTypeUShort: 2,
	flattypes.ColumnTypeInt:    4,
	flattypes.ColumnTypeUInt:   4,
	flattypes.ColumnTypeLong:   8,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  4,
	flattypes.ColumnTypeDouble: 8,
}

// readValue decodes one value of type t and returns it with its encoded size.
func readValue(data []byte, t flattypes.ColumnType) (any, int, error) {
	le := binary.LittleEndian
	if w, ok := fixedWidth[t]; ok {
		if len(data) < w {
			return nil, 0, errors.Wrapf(ErrInvalidData, "need %d bytes, have %d", w, len(data))
		}
		switch t {
		case flattypes.ColumnTypeBool:
			return data[0] != 0, 1, nil
		case flattypes.ColumnTypeByte:
			return int8(data[0]), 1, nil
		case flattypes.ColumnTypeUByte:
			return data[0], 1, nil
		case flattypes.ColumnTypeShort:
			return int16(le.Uint16(data)), 2, nil
		case flattypes.ColumnTypeUShort:
			return le.Uint16(data), 2, nil
		case flattypes.ColumnTypeInt:
			return int32(le.Uint32(data)), 4, nil
		case flattypes.ColumnTypeUInt:
			return le.Uint32(data), 4, nil
		case flattypes.ColumnTypeLong:
			return int64(le.Uint64(data)), 8, nil
		case flattypes.ColumnTypeULong:
			return le.Uint64(data), 8, nil
		case flattypes.ColumnTypeFloat:
			return math.Float32frombits(le.Uint32(data)), 4, nil
		default:
			return math.Float64frombits(le.Uint64(data)), 8, nil
		}
	}

	if len(data) < 4 {
		return nil, 0, errors.Wrapf(ErrInvalidData, "truncated length prefix")
	}
	n := int(le.Uint32(data))
	if len(data)-4 < n {
		return nil, 0, errors.Wrapf(ErrInvalidData, "value of %d bytes, have %d", n, len(data)-4)
	}
	raw := data[4 : 4+n]

	switch t {
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime:
		return string(raw), 4 + n, nil
	case flattypes.ColumnTypeJson:
		var v any
		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		if err := d.Decode(&v); err != nil {
			return string(raw), 4 + n, nil
		}
		return v, 4 + n, nil
	case flattypes.ColumnTypeBinary:
		return bytes.Clone(raw), 4 + n, nil
	default:
		return nil, 0, errors.Wrapf(ErrInvalidColumn, "type %d", t)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	if u, ok := v.(uint64); ok {
		return u, true
	}
	i, ok := toInt64(v)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrap(err, "fgb: encode string property")
		}
		return string(b), nil
	}
}
