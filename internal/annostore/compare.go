package annostore

import (
	"math"

	"github.com/pathview/inkscan/internal/models"
)

// Comparison tolerances for the live-tracking change predicate.
// Movements below these thresholds are viewer jitter, not edits.
const (
	zoomTolerance   = 0.01
	centerTolerance = 0.1
	coordTolerance  = 0.001
)

// Changed reports whether two snapshots differ enough to warrant a new
// live-tracking file. Annotations are compared pairwise by list
// position, so reordering without content change counts as changed.
// A nil snapshot on either side always counts as changed.
func Changed(a, b *models.Snapshot) bool {
	if a == nil || b == nil {
		return true
	}
	if math.Abs(a.Zoom-b.Zoom) > zoomTolerance {
		return true
	}
	if math.Abs(a.Center[0]-b.Center[0]) > centerTolerance ||
		math.Abs(a.Center[1]-b.Center[1]) > centerTolerance {
		return true
	}
	if len(a.Annotations) != len(b.Annotations) {
		return true
	}
	for i := range a.Annotations {
		if polylineChanged(&a.Annotations[i], &b.Annotations[i]) {
			return true
		}
	}
	return false
}

func polylineChanged(a, b *models.Polyline) bool {
	if a.Type != b.Type || a.Color != b.Color || a.Weight != b.Weight {
		return true
	}
	if len(a.Coordinates) != len(b.Coordinates) {
		return true
	}
	for i := range a.Coordinates {
		if math.Abs(a.Coordinates[i][0]-b.Coordinates[i][0]) > coordTolerance ||
			math.Abs(a.Coordinates[i][1]-b.Coordinates[i][1]) > coordTolerance {
			return true
		}
	}
	return false
}
