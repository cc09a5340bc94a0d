// Package annostore owns the on-disk annotation snapshot sequences, the
// consolidated ink status file, and the per-image session state machine
// driving change-gated autosave and undo/redo navigation.
package annostore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pathview/inkscan/internal/models"
)

// Directory names under <annotations>/<image>/.
const (
	LiveTrackingDir = "live_tracking"
	SavedViewsDir   = "saved_views"
)

// Sequence is an ordered set of numbered snapshot files in one
// directory. Filenames are 5-digit zero-padded sequence numbers; the
// set may be sparse after eviction.
type Sequence struct {
	dir string
}

// OpenSequence opens (creating if needed) a snapshot sequence directory.
func OpenSequence(dir string) (*Sequence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("annostore: create sequence dir: %w", err)
	}
	return &Sequence{dir: dir}, nil
}

// Dir returns the sequence directory.
func (s *Sequence) Dir() string { return s.dir }

func (s *Sequence) filename(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%05d.json", n))
}

// Numbers returns the existing sequence numbers in ascending order.
// Files that do not parse as a number are skipped.
func (s *Sequence) Numbers() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("annostore: read sequence dir: %w", err)
	}
	var nums []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if convErr != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

// Next returns the next sequence number: max(existing)+1, or 0 when the
// sequence is empty.
func (s *Sequence) Next() (int, error) {
	nums, err := s.Numbers()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, nil
	}
	return nums[len(nums)-1] + 1, nil
}

// Read loads snapshot n. A missing or malformed file is treated as "no
// snapshot available" and returns (nil, nil); only unexpected I/O
// failures produce an error.
func (s *Sequence) Read(n int) (*models.Snapshot, error) {
	data, err := os.ReadFile(s.filename(n))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("annostore: read snapshot %05d: %w", n, err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Truncated or corrupt file, e.g. from a crash mid-write.
		return nil, nil
	}
	return &snap, nil
}

// Write persists snapshot n as indented JSON.
func (s *Sequence) Write(n int, snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("annostore: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.filename(n), data, 0o644); err != nil {
		return fmt.Errorf("annostore: write snapshot %05d: %w", n, err)
	}
	return nil
}

// Evict deletes the lowest-numbered files until at most maxFiles remain.
// It returns how many files were removed.
func (s *Sequence) Evict(maxFiles int) (int, error) {
	nums, err := s.Numbers()
	if err != nil {
		return 0, err
	}
	if len(nums) <= maxFiles {
		return 0, nil
	}
	removed := 0
	for _, n := range nums[:len(nums)-maxFiles] {
		if rmErr := os.Remove(s.filename(n)); rmErr != nil {
			return removed, fmt.Errorf("annostore: evict snapshot %05d: %w", n, rmErr)
		}
		removed++
	}
	return removed, nil
}
