package annostore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pathview/inkscan/internal/models"
)

// Manager owns one Session per open image and drives them all from a
// single autosave ticker.
type Manager struct {
	annotationsDir  string
	status          *StatusStore
	cmd             Commander
	logger          *slog.Logger
	maxLiveFiles    int
	navigationGrace time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager rooted at annotationsDir.
func NewManager(annotationsDir string, status *StatusStore, cmd Commander, logger *slog.Logger, maxLiveFiles int, navigationGrace time.Duration) *Manager {
	return &Manager{
		annotationsDir:  annotationsDir,
		status:          status,
		cmd:             cmd,
		logger:          logger,
		maxLiveFiles:    maxLiveFiles,
		navigationGrace: navigationGrace,
		sessions:        make(map[string]*Session),
	}
}

// Session returns the session for image, creating it (and its
// on-disk directories) on first use.
func (m *Manager) Session(image string, dims models.Dimensions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[image]; ok {
		return s, nil
	}
	s, err := NewSession(SessionConfig{
		Image:           image,
		Dimensions:      dims,
		AnnotationsDir:  m.annotationsDir,
		Status:          m.status,
		Commander:       m.cmd,
		Logger:          m.logger,
		MaxLiveFiles:    m.maxLiveFiles,
		NavigationGrace: m.navigationGrace,
	})
	if err != nil {
		return nil, err
	}
	m.sessions[image] = s
	m.logger.Info("opened annotation session", slog.String("image", image))
	return s, nil
}

// Lookup returns the session for image if one is already open.
func (m *Manager) Lookup(image string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[image]
	return s, ok
}

// HandleState routes an inbound viewer state to its session. States
// for images with no open session are dropped.
func (m *Manager) HandleState(image string, snap *models.Snapshot) {
	s, ok := m.Lookup(image)
	if !ok {
		m.logger.Debug("state for unknown session dropped", slog.String("image", image))
		return
	}
	s.HandleState(snap)
}

// Run drives the autosave ticker until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tickAll()
		}
	}
}

func (m *Manager) tickAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Tick()
	}
}
