package pyramid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCenterOffsetY(t *testing.T) {
	tests := []struct {
		aspect float64
		want   float64
	}{
		{2.0, -1.25},
		{1.51, -1.25},
		{1.5, -1.15},
		{1.3, -1.15},
		{1.2, 0.0},
		{1.0, 0.0},
		{0.91, 0.0},
		{0.9, 0.5},
		{0.75, 0.5},
		{0.7, 1.0},
		{0.4, 1.0},
	}
	for _, tt := range tests {
		if got := CenterOffsetY(tt.aspect); got != tt.want {
			t.Errorf("CenterOffsetY(%v) = %v, want %v", tt.aspect, got, tt.want)
		}
	}
}

func TestComputeMetadata(t *testing.T) {
	g := NewGeometry(1200, 900, 256, 1)
	m := ComputeMetadata(g, "slide_a")

	if m.Filename != "slide_a" {
		t.Errorf("filename = %q", m.Filename)
	}
	if m.DZILevels != 4 {
		t.Errorf("dzi_levels = %d, want 4", m.DZILevels)
	}
	// Only 4 levels, so the default recommendation clamps to the top.
	if m.RecommendedStartLevel != 3 {
		t.Errorf("recommended_start_level = %d, want 3", m.RecommendedStartLevel)
	}
	if m.AspectRatio != 1.333 {
		t.Errorf("aspect_ratio = %v, want 1.333", m.AspectRatio)
	}
	if m.CenterOffsetY != -1.15 {
		t.Errorf("center_offset_y = %v, want -1.15", m.CenterOffsetY)
	}
	if m.TilesAtStartLevel.Cols != 5 || m.TilesAtStartLevel.Rows != 4 {
		t.Errorf("tiles_at_start_level = %+v, want 5x4", m.TilesAtStartLevel)
	}
	if m.DimensionsAtStartLevel.Width != 1200 || m.DimensionsAtStartLevel.Height != 900 {
		t.Errorf("dimensions_at_start_level = %+v", m.DimensionsAtStartLevel)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := NewGeometry(1000, 1000, 256, 1)
	m := ComputeMetadata(g, "slide_b")

	path := MetadataPath(dir, "slide_b")
	if err := WriteMetadata(path, m); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	got, err := ReadMetadata(path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if *got != *m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestMMPerPixel(t *testing.T) {
	dir := t.TempDir()

	// No sidecar: default.
	if got := MMPerPixel(dir, "none"); got != defaultMMPerPixel {
		t.Errorf("missing sidecar mm/px = %v, want %v", got, defaultMMPerPixel)
	}

	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, name+"_svs_scalebar_metadata.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Numeric mpp_x (µm/px) converts to mm/px.
	write("num", `{"mpp_x": 0.25}`)
	if got := MMPerPixel(dir, "num"); got != 0.00025 {
		t.Errorf("numeric mm/px = %v, want 0.00025", got)
	}

	// Some scanners write mpp_x as a string.
	write("str", `{"mpp_x": "0.5"}`)
	if got := MMPerPixel(dir, "str"); got != 0.0005 {
		t.Errorf("string mm/px = %v, want 0.0005", got)
	}

	// Malformed sidecar falls back to the default.
	write("bad", `{not json`)
	if got := MMPerPixel(dir, "bad"); got != defaultMMPerPixel {
		t.Errorf("malformed sidecar mm/px = %v, want %v", got, defaultMMPerPixel)
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := NewGeometry(1200, 900, 256, 1)
	d := NewDescriptor(g, Format)

	path := filepath.Join(dir, "slide.dzi")
	if err := WriteDescriptor(path, d); err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}

	got, err := ReadDescriptor(path)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if got.Size.Width != 1200 || got.Size.Height != 900 {
		t.Errorf("size = %+v, want 1200x900", got.Size)
	}
	if got.TileSize != 256 || got.Overlap != 1 || got.Format != "png" {
		t.Errorf("attrs = %+v", got)
	}
	if got.Geometry().Levels != 4 {
		t.Errorf("reconstructed levels = %d, want 4", got.Geometry().Levels)
	}
}
