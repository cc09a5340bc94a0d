package annostore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pathview/inkscan/internal/models"
)

// StatusStore persists the per-image triage records in one consolidated
// JSON file mapping image name to status. Every mutation is a whole-file
// read-modify-write under the store's mutex; concurrent writers from
// other processes are last-writer-wins.
type StatusStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewStatusStore creates a store over the given status file path.
func NewStatusStore(path string) *StatusStore {
	return &StatusStore{path: path, now: time.Now}
}

// load reads the full status map. Missing or malformed files yield an
// empty map so a corrupt status file never blocks annotation work.
func (s *StatusStore) load() map[string]models.ImageStatus {
	statuses := make(map[string]models.ImageStatus)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return statuses
	}
	if err := json.Unmarshal(data, &statuses); err != nil {
		return make(map[string]models.ImageStatus)
	}
	return statuses
}

func (s *StatusStore) save(statuses map[string]models.ImageStatus) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("annostore: create status dir: %w", err)
	}
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("annostore: marshal status: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("annostore: write status: %w", err)
	}
	return nil
}

// Get returns the status record for an image, or a fresh default when
// none exists.
func (s *StatusStore) Get(image string) models.ImageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.load()[image]; ok {
		return st
	}
	return models.ImageStatus{Done: false, InkFound: false, LastUpdated: s.now()}
}

// Set replaces the status record for an image and returns it.
func (s *StatusStore) Set(image string, done, inkFound bool) (models.ImageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := s.load()
	st := models.ImageStatus{Done: done, InkFound: inkFound, LastUpdated: s.now()}
	statuses[image] = st
	if err := s.save(statuses); err != nil {
		return models.ImageStatus{}, err
	}
	return st, nil
}

// Counts returns how many images are marked done and how many have ink
// found.
func (s *StatusStore) Counts() (done, inkFound int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.load() {
		if st.Done {
			done++
		}
		if st.InkFound {
			inkFound++
		}
	}
	return done, inkFound
}
