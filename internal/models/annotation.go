// Package models defines the domain types for inkscan.
package models

import "time"

// Dimensions holds pixel dimensions of a slide image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Polyline is a single freehand ink mark drawn by the annotator.
// Coordinates are [x, y] pairs in viewer space.
type Polyline struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
	Color       string       `json:"color"`
	Weight      float64      `json:"weight"`
}

// Snapshot captures the full viewport + annotation state of an open
// slide at one moment. Snapshots are immutable once written; a snapshot
// file is identified by its zero-padded sequence number, not by any
// field inside it.
//
// Center is [y, x], matching the viewer's coordinate order.
type Snapshot struct {
	Zoom            float64     `json:"zoom"`
	Center          [2]float64  `json:"center"`
	Annotations     []Polyline  `json:"annotations"`
	ImageName       string      `json:"image_name,omitempty"`
	ImageDimensions *Dimensions `json:"image_dimensions,omitempty"`
	Timestamp       string      `json:"timestamp,omitempty"`
	SavedAt         string      `json:"saved_at,omitempty"`
}

// ImageStatus is the per-image triage record kept in the consolidated
// status file. Done and InkFound are caller-maintained policy flags;
// no structural relation between them is enforced.
type ImageStatus struct {
	Done        bool      `json:"done"`
	InkFound    bool      `json:"ink_found"`
	LastUpdated time.Time `json:"last_updated"`
}

// MappingEntry is one record of the externally supplied image inventory
// mapping. Only SVSFile and TilesDirectory are consumed by the core; the
// rest is carried through for display.
type MappingEntry struct {
	EntryNumber    int    `json:"entry_number"`
	SVSFile        string `json:"svs_file"`
	TilesDirectory string `json:"tiles_directory"`
	CollectionName string `json:"collection_name"`
}
