package api

import (
	"github.com/pathview/inkscan/internal/models"
)

// SlideListItem is a lightweight item in a slide list response.
type SlideListItem struct {
	Name        string             `json:"name"`
	EntryNumber int                `json:"entry_number"`
	SVSFile     string             `json:"svs_file"`
	Collection  string             `json:"collection,omitempty"`
	Dimensions  models.Dimensions  `json:"dimensions"`
	AspectRatio float64            `json:"aspect_ratio"`
	Status      models.ImageStatus `json:"status"`
}

// SlideListResponse wraps slide listings.
type SlideListResponse struct {
	Slides []SlideListItem `json:"slides"`
	Total  int             `json:"total"`
}

// SlideDetail is the full per-slide response, combining catalog,
// pyramid metadata and annotation status.
type SlideDetail struct {
	Name                  string             `json:"name"`
	EntryNumber           int                `json:"entry_number"`
	SVSFile               string             `json:"svs_file"`
	Collection            string             `json:"collection,omitempty"`
	Dimensions            models.Dimensions  `json:"dimensions"`
	AspectRatio           float64            `json:"aspect_ratio"`
	DZILevels             int                `json:"dzi_levels"`
	RecommendedStartLevel int                `json:"recommended_start_level"`
	CenterOffsetY         float64            `json:"center_offset_y"`
	TileSize              int                `json:"tile_size"`
	Overlap               int                `json:"overlap"`
	MMPerPixel            float64            `json:"mm_per_pixel"`
	DZIPath               string             `json:"dzi_path"`
	Status                models.ImageStatus `json:"status"`
}

// CountsResponse summarizes annotation progress across the catalog.
type CountsResponse struct {
	Total    int `json:"total"`
	Done     int `json:"done"`
	InkFound int `json:"ink_found"`
}
