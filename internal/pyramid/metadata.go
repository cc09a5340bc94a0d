package pyramid

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pathview/inkscan/internal/models"
)

// defaultStartLevel is the builder's recommendation for the initial
// viewer level, clamped to the pyramid's level count. Callers may
// override it through configuration; the metadata value stays primary.
const defaultStartLevel = 10

// defaultMMPerPixel is used when no scalebar sidecar exists
// (0.4 µm/px, a typical 40x scan).
const defaultMMPerPixel = 0.0004

// Metadata holds the derived viewer hints persisted next to each
// pyramid as <base>_metadata.json. Computed once by the builder and
// never recomputed except by rebuilding.
type Metadata struct {
	Filename               string            `json:"filename"`
	OriginalDimensions     models.Dimensions `json:"original_dimensions"`
	AspectRatio            float64           `json:"aspect_ratio"`
	DZILevels              int               `json:"dzi_levels"`
	RecommendedStartLevel  int               `json:"recommended_start_level"`
	DimensionsAtStartLevel SizeF             `json:"dimensions_at_start_level"`
	TilesAtStartLevel      Grid              `json:"tiles_at_start_level"`
	CenterOffsetY          float64           `json:"center_offset_y"`
	TileSize               int               `json:"tile_size"`
	Overlap                int               `json:"overlap"`
}

// SizeF holds fractional dimensions at a downsampled level.
type SizeF struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Grid holds a tile grid size.
type Grid struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// CenterOffsetY returns the vertical-centering multiplier for an aspect
// ratio. Wide images shift the initial view up, tall images down.
func CenterOffsetY(aspectRatio float64) float64 {
	switch {
	case aspectRatio > 1.5:
		return -1.25
	case aspectRatio > 1.2:
		return -1.15
	case aspectRatio > 0.9:
		return 0.0
	case aspectRatio > 0.7:
		return 0.5
	default:
		return 1.0
	}
}

// ComputeMetadata derives the viewer metadata for a pyramid geometry.
func ComputeMetadata(g Geometry, baseName string) *Metadata {
	aspect := float64(g.Width) / float64(g.Height)

	start := defaultStartLevel
	if start > g.Levels-1 {
		start = g.Levels - 1
	}

	scale := float64(int(1) << (g.Levels - 1 - start))
	cols, rows := g.TileGrid(start)

	return &Metadata{
		Filename:              baseName,
		OriginalDimensions:    models.Dimensions{Width: g.Width, Height: g.Height},
		AspectRatio:           math.Round(aspect*1000) / 1000,
		DZILevels:             g.Levels,
		RecommendedStartLevel: start,
		DimensionsAtStartLevel: SizeF{
			Width:  math.Round(float64(g.Width)/scale*100) / 100,
			Height: math.Round(float64(g.Height)/scale*100) / 100,
		},
		TilesAtStartLevel: Grid{Cols: cols, Rows: rows},
		CenterOffsetY:     CenterOffsetY(aspect),
		TileSize:          g.TileSize,
		Overlap:           g.Overlap,
	}
}

// WriteMetadata persists metadata as indented JSON to path.
func WriteMetadata(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("pyramid: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pyramid: write metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a metadata file.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyramid: read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pyramid: parse metadata %s: %w", path, err)
	}
	return &m, nil
}

// MetadataPath returns the metadata file path for a pyramid whose tiles
// directory is <dir>/<base>_files.
func MetadataPath(dir, baseName string) string {
	return filepath.Join(dir, baseName+"_metadata.json")
}

// MMPerPixel reads the optional scalebar sidecar
// <base>_svs_scalebar_metadata.json and converts its mpp_x value
// (microns per pixel) to millimetres per pixel. Missing or malformed
// sidecars fall back to the default.
func MMPerPixel(dir, baseName string) float64 {
	path := filepath.Join(dir, baseName+"_svs_scalebar_metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultMMPerPixel
	}
	var sidecar struct {
		MppX any `json:"mpp_x"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return defaultMMPerPixel
	}
	// Scanners write mpp_x as either a number or a string.
	var mpp float64
	switch v := sidecar.MppX.(type) {
	case float64:
		mpp = v
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			mpp = parsed
		}
	}
	if mpp <= 0 {
		return defaultMMPerPixel
	}
	return mpp * 0.001
}
