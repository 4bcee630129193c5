package fgb

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoblob"
)

// blobOf serializes an orb geometry into a geometry blob.
func blobOf(t testing.TB, geom orb.Geometry) []byte {
	t.Helper()
	a := geoblob.NewArena()
	g, err := geoblob.FromOrb(a, geom)
	if err != nil {
		t.Fatalf("FromOrb failed: %v", err)
	}
	blob, err := geoblob.Serialize(g)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	return blob
}

// orbOf decodes a geometry blob back into an orb geometry.
func orbOf(t testing.TB, blob []byte) orb.Geometry {
	t.Helper()
	g, err := geoblob.Deserialize(geoblob.NewArena(), blob)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	geom, err := geoblob.ToOrb(g)
	if err != nil {
		t.Fatalf("ToOrb failed: %v", err)
	}
	return geom
}

func feature(t testing.TB, geom orb.Geometry, props geojson.Properties) Feature {
	t.Helper()
	return Feature{Geometry: blobOf(t, geom), Properties: props}
}

// byID indexes features by their integer "id" property.
func byID(t testing.TB, features []Feature) map[int]Feature {
	t.Helper()
	out := make(map[int]Feature, len(features))
	for _, f := range features {
		id, ok := f.Properties["id"].(int32)
		if !ok {
			t.Fatalf("feature without int32 id: %v", f.Properties)
		}
		out[int(id)] = f
	}
	return out
}
