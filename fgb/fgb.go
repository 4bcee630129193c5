// Package fgb reads and writes FlatGeobuf files as geometry blobs. Files are
// reached through a vsi.FileManager, so a connection-prefixed path lands on
// that connection's host filesystem.
package fgb

import (
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrNoFeatures       = errors.New("fgb: no features to write")
	ErrUnsupportedType  = errors.New("fgb: unsupported geometry type")
	ErrInvalidData      = errors.New("fgb: invalid data")
	ErrNoIndex          = errors.New("fgb: file has no spatial index")
	ErrInvalidColumn    = errors.New("fgb: invalid column type")
	ErrPropertyMismatch = errors.New("fgb: property type mismatch")
)

// Feature is one row of a FlatGeobuf layer.
type Feature struct {
	Geometry   []byte // serialized geometry blob
	Properties geojson.Properties
}

// CRS represents a coordinate reference system.
type CRS struct {
	Code        int    // EPSG code (e.g., 4326 for WGS84)
	Name        string // CRS name
	Description string // CRS description
	WKT         string // Well-Known Text representation
}

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return &CRS{
		Code: 4326,
		Name: "WGS 84",
	}
}

// Options configures FlatGeobuf writing.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index (default: true)
	CRS          *CRS   // Coordinate reference system (optional)
}

// DefaultOptions returns default options for writing FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{
		IncludeIndex: true,
	}
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Bool", "Int", "Long", "Double", "String", "Json", etc.)
	Title       string
	Description string
	Nullable    bool
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string
	Description   string
	GeometryType  string // "Point", "Polygon", "Unknown", ...
	HasZ          bool
	HasM          bool
	FeaturesCount uint64
	Envelope      [4]float64 // [minX, minY, maxX, maxY]
	CRS           *CRS
	HasIndex      bool
	Columns       []ColumnInfo
}
