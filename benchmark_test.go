package geoblob

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// =============================================================================
// Test Data Generators
// =============================================================================

// generatePoints creates n random points within the given bounds.
func generatePoints(r *rand.Rand, n int, minX, maxX, minY, maxY float64) []orb.Point {
	points := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		x := minX + r.Float64()*(maxX-minX)
		y := minY + r.Float64()*(maxY-minY)
		points[i] = orb.Point{x, y}
	}
	return points
}

// generateLineString creates a random walk with the given number of vertices.
func generateLineString(r *rand.Rand, vertices int) orb.LineString {
	line := make(orb.LineString, vertices)
	x := -180 + r.Float64()*360
	y := -90 + r.Float64()*180
	for j := 0; j < vertices; j++ {
		line[j] = orb.Point{x + float64(j)*0.01, y + r.Float64()*0.01}
	}
	return line
}

// generateComplexPolygon approximates a circle with the given vertex count.
func generateComplexPolygon(r *rand.Rand, vertices int) orb.Polygon {
	centerX := -180 + r.Float64()*360
	centerY := -90 + r.Float64()*180
	radius := 0.01 + r.Float64()*0.05

	ring := make(orb.Ring, vertices+1)
	for j := 0; j < vertices; j++ {
		angle := 2 * math.Pi * float64(j) / float64(vertices)
		ring[j] = orb.Point{centerX + radius*math.Cos(angle), centerY + radius*math.Sin(angle)}
	}
	ring[vertices] = ring[0]
	return orb.Polygon{ring}
}

func generateGeometry(r *rand.Rand, geomType string, size int) orb.Geometry {
	switch geomType {
	case "multipoint":
		return orb.MultiPoint(generatePoints(r, size, -180, 180, -90, 90))
	case "linestring":
		return generateLineString(r, size)
	case "polygon":
		return generateComplexPolygon(r, size)
	default:
		mp := make(orb.MultiPolygon, 0, size/32+1)
		for i := 0; i < size/32+1; i++ {
			mp = append(mp, generateComplexPolygon(r, 32))
		}
		return mp
	}
}

func mustBlob(tb testing.TB, geom orb.Geometry) []byte {
	tb.Helper()
	a := NewArena()
	g, err := FromOrb(a, geom)
	if err != nil {
		tb.Fatalf("FromOrb failed: %v", err)
	}
	blob, err := Serialize(g)
	if err != nil {
		tb.Fatalf("Serialize failed: %v", err)
	}
	return blob
}

// =============================================================================
// Size Comparison Tests
// =============================================================================

func TestSizeComparison(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	t.Logf("%-12s | %-8s | %-12s | %-12s | %-12s", "Type", "Vertices", "Blob (bytes)", "WKB (bytes)", "GeoJSON")
	for _, geomType := range []string{"multipoint", "linestring", "polygon", "multipolygon"} {
		for _, n := range []int{10, 1000} {
			geom := generateGeometry(r, geomType, n)
			blob := mustBlob(t, geom)

			wkbBytes, err := wkb.Marshal(geom)
			if err != nil {
				t.Fatalf("wkb marshal failed: %v", err)
			}
			jsonBytes, err := json.Marshal(geojson.NewGeometry(geom))
			if err != nil {
				t.Fatalf("JSON marshal failed: %v", err)
			}

			// The blob carries a header, a cached box and 8-byte alignment on
			// top of the raw doubles, so it stays within a small constant of WKB.
			if len(blob) > 2*len(wkbBytes)+128 {
				t.Errorf("%s/%d: blob %d bytes is out of proportion to WKB %d bytes", geomType, n, len(blob), len(wkbBytes))
			}
			t.Logf("%-12s | %-8d | %-12d | %-12d | %-12d", geomType, n, len(blob), len(wkbBytes), len(jsonBytes))
		}
	}
}

// =============================================================================
// Codec Benchmarks
// =============================================================================

func BenchmarkSerialize_LineString_1000(b *testing.B) {
	benchmarkSerialize(b, "linestring", 1000)
}

func BenchmarkSerialize_MultiPolygon_1000(b *testing.B) {
	benchmarkSerialize(b, "multipolygon", 1000)
}

func BenchmarkDeserialize_LineString_1000(b *testing.B) {
	benchmarkDeserialize(b, "linestring", 1000)
}

func BenchmarkDeserialize_MultiPolygon_1000(b *testing.B) {
	benchmarkDeserialize(b, "multipolygon", 1000)
}

func BenchmarkBoundingBox_FastPath_MultiPolygon_10000(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	blob := mustBlob(b, generateGeometry(r, "multipolygon", 10000))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := TryGetSerializedBoundingBox(blob); !ok {
			b.Fatal("expected cached box")
		}
	}
}

func BenchmarkBoundingBox_FullDecode_MultiPolygon_10000(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	blob := mustBlob(b, generateGeometry(r, "multipolygon", 10000))
	a := NewArena()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Reset()
		g, err := Deserialize(a, blob)
		if err != nil {
			b.Fatal(err)
		}
		if _, ok := g.Bounds(); !ok {
			b.Fatal("expected bounds")
		}
	}
}

func benchmarkSerialize(b *testing.B, geomType string, n int) {
	r := rand.New(rand.NewSource(42))
	a := NewArena()
	g, err := FromOrb(a, generateGeometry(r, geomType, n))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(g); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkDeserialize(b *testing.B, geomType string, n int) {
	r := rand.New(rand.NewSource(42))
	blob := mustBlob(b, generateGeometry(r, geomType, n))
	a := NewArena()

	b.ReportAllocs()
	b.SetBytes(int64(len(blob)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Reset()
		if _, err := Deserialize(a, blob); err != nil {
			b.Fatal(err)
		}
	}
}
