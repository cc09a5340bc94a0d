package annostore

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pathview/inkscan/internal/models"
	"github.com/pathview/inkscan/internal/pyramid"
)

// Commander carries typed commands from the store out to the UI layer.
// RequestState asks the viewer to report its current viewport +
// annotations (the reply comes back through Session.HandleState);
// LoadSnapshot pushes a snapshot for the viewer to render.
type Commander interface {
	RequestState(image string)
	LoadSnapshot(image string, snap *models.Snapshot)
}

// SessionConfig configures one per-image annotation session.
type SessionConfig struct {
	Image           string
	Dimensions      models.Dimensions
	AnnotationsDir  string
	Status          *StatusStore
	Commander       Commander
	Logger          *slog.Logger
	MaxLiveFiles    int
	NavigationGrace time.Duration
	Now             func() time.Time
}

// Session is the live-tracking/undo-redo state machine for one open
// image. Operations arrive from the autosave ticker, the inbound state
// stream and the HTTP handlers, so every exported method takes the
// session mutex. The loading flag marks a navigation load whose echo
// must be treated as a reference update, not a user edit.
type Session struct {
	mu sync.Mutex

	image  string
	dims   models.Dimensions
	live   *Sequence
	saved  *Sequence
	status *StatusStore
	cmd    Commander
	logger *slog.Logger
	now    func() time.Time

	maxLiveFiles    int
	navigationGrace time.Duration

	lastState    *models.Snapshot
	initialSaved bool
	manualSave   bool
	loading      bool
	navTime      time.Time
	liveIndex    int // current live-tracking position, -1 = none
	savedCursor  int // current saved-views position, -1 = none loaded
}

// NewSession opens (creating directories as needed) a session for one
// image. The current live position starts at the latest existing
// snapshot, if any.
func NewSession(cfg SessionConfig) (*Session, error) {
	imageDir := filepath.Join(cfg.AnnotationsDir, cfg.Image)
	live, err := OpenSequence(filepath.Join(imageDir, LiveTrackingDir))
	if err != nil {
		return nil, err
	}
	saved, err := OpenSequence(filepath.Join(imageDir, SavedViewsDir))
	if err != nil {
		return nil, err
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxLiveFiles <= 0 {
		cfg.MaxLiveFiles = 1000
	}
	if cfg.NavigationGrace <= 0 {
		cfg.NavigationGrace = 2 * time.Second
	}

	s := &Session{
		image:           cfg.Image,
		dims:            cfg.Dimensions,
		live:            live,
		saved:           saved,
		status:          cfg.Status,
		cmd:             cfg.Commander,
		logger:          cfg.Logger.With(slog.String("image", cfg.Image)),
		now:             cfg.Now,
		maxLiveFiles:    cfg.MaxLiveFiles,
		navigationGrace: cfg.NavigationGrace,
		liveIndex:       -1,
		savedCursor:     -1,
	}

	nums, err := live.Numbers()
	if err != nil {
		return nil, err
	}
	if len(nums) > 0 {
		s.liveIndex = nums[len(nums)-1]
	}
	return s, nil
}

// Tick runs the periodic autosave check. It is a no-op while a
// navigation load is in flight and for the grace period after any
// navigation, so a loaded state rendered slowly by the viewer is never
// misread as a fresh edit.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return
	}
	if s.now().Sub(s.navTime) < s.navigationGrace {
		return
	}
	s.cmd.RequestState(s.image)
}

// HandleState receives the viewer's reported state. Depending on the
// session state it completes a manual save, absorbs a navigation echo
// as the new reference, or appends a live-tracking snapshot when the
// state differs from the last recorded one.
func (s *Session) HandleState(snap *models.Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.ImageDimensions = &models.Dimensions{Width: s.dims.Width, Height: s.dims.Height}

	if s.manualSave {
		s.completeManualSave(snap)
		return
	}

	if s.loading {
		s.logger.Info("state loaded during navigation, updating reference without saving")
		s.lastState = snap
		s.loading = false
		return
	}

	if !s.initialSaved {
		s.logger.Info("saving initial state")
		if s.appendLive(snap) {
			s.lastState = snap
			s.initialSaved = true
		}
		return
	}

	if !Changed(snap, s.lastState) {
		return
	}
	s.logger.Debug("view changed, saving new state")
	if s.appendLive(snap) {
		s.lastState = snap
	}
}

// appendLive writes snap at the next live sequence number and evicts
// beyond the file cap. Returns false when the write failed.
func (s *Session) appendLive(snap *models.Snapshot) bool {
	n, err := s.live.Next()
	if err != nil {
		s.logger.Error("live tracking next number", slog.String("error", err.Error()))
		return false
	}
	if err := s.live.Write(n, snap); err != nil {
		s.logger.Error("live tracking save", slog.String("error", err.Error()))
		return false
	}
	s.liveIndex = n

	if removed, err := s.live.Evict(s.maxLiveFiles); err != nil {
		s.logger.Warn("live tracking eviction", slog.String("error", err.Error()))
	} else if removed > 0 {
		s.logger.Debug("evicted old live tracking files", slog.Int("removed", removed))
	}
	return true
}

// Undo steps the live-tracking position back one snapshot and pushes it
// to the viewer. Already at the earliest is an informational no-op.
func (s *Session) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nums, err := s.live.Numbers()
	if err != nil {
		s.logger.Error("undo: list live tracking", slog.String("error", err.Error()))
		return
	}
	if len(nums) == 0 {
		s.logger.Info("undo: no live tracking files")
		return
	}

	pos := indexOf(nums, s.liveIndex)
	if pos < 0 {
		pos = len(nums) - 1
		s.liveIndex = nums[pos]
	}
	if pos == 0 {
		s.logger.Info("undo: already at the first state")
		return
	}
	s.loadLive(nums[pos-1])
}

// Redo steps the live-tracking position forward one snapshot.
func (s *Session) Redo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nums, err := s.live.Numbers()
	if err != nil {
		s.logger.Error("redo: list live tracking", slog.String("error", err.Error()))
		return
	}
	if len(nums) == 0 {
		s.logger.Info("redo: no live tracking files")
		return
	}

	pos := indexOf(nums, s.liveIndex)
	if pos < 0 {
		s.logger.Info("redo: current position unknown")
		return
	}
	if pos >= len(nums)-1 {
		s.logger.Info("redo: already at the latest state")
		return
	}
	s.loadLive(nums[pos+1])
}

// loadLive loads live snapshot n and pushes it to the viewer. The
// loading flag and navigation timestamp are set before the load so the
// asynchronous echo is classified as a reference update.
func (s *Session) loadLive(n int) {
	s.beginNavigation()
	snap, err := s.live.Read(n)
	if err != nil {
		s.logger.Error("load live snapshot", slog.Int("n", n), slog.String("error", err.Error()))
		s.loading = false
		return
	}
	if snap == nil {
		s.logger.Warn("live snapshot missing or malformed", slog.Int("n", n))
		s.loading = false
		return
	}
	s.liveIndex = n
	s.lastState = snap
	s.savedCursor = -1
	s.cmd.LoadSnapshot(s.image, snap)
	s.logger.Info("loaded live tracking state", slog.Int("n", n))
}

// SaveView starts the manual checkpoint flow: the status record is
// forced to done=true, ink_found=true and the next inbound state is
// appended to the saved-views sequence instead of live tracking.
func (s *Session) SaveView() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manualSave = true
	if _, err := s.status.Set(s.image, true, true); err != nil {
		s.logger.Error("save view: set status", slog.String("error", err.Error()))
	}
	s.cmd.RequestState(s.image)
}

func (s *Session) completeManualSave(snap *models.Snapshot) {
	defer func() { s.manualSave = false }()

	snap.ImageName = s.image
	snap.SavedAt = s.now().Format(time.RFC3339)

	n, err := s.saved.Next()
	if err != nil {
		s.logger.Error("manual save: next number", slog.String("error", err.Error()))
		return
	}
	if err := s.saved.Write(n, snap); err != nil {
		s.logger.Error("manual save", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("saved view", slog.Int("n", n))
}

// PrevSaved moves the saved-views cursor back one and loads that view.
// At the first view (or with none loaded yet) it clamps and no-ops.
func (s *Session) PrevSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nums, err := s.saved.Numbers()
	if err != nil {
		s.logger.Error("prev saved: list", slog.String("error", err.Error()))
		return
	}
	if len(nums) == 0 {
		s.logger.Info("prev saved: no saved views")
		return
	}
	if s.savedCursor <= 0 {
		s.savedCursor = 0
		s.logger.Info("prev saved: already at the first saved view")
		return
	}
	s.savedCursor--
	s.loadSaved(nums[s.savedCursor])
}

// NextSaved moves the saved-views cursor forward one and loads that
// view. At the last view it clamps and no-ops.
func (s *Session) NextSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nums, err := s.saved.Numbers()
	if err != nil {
		s.logger.Error("next saved: list", slog.String("error", err.Error()))
		return
	}
	if len(nums) == 0 {
		s.logger.Info("next saved: no saved views")
		return
	}
	if s.savedCursor >= len(nums)-1 {
		s.savedCursor = len(nums) - 1
		s.logger.Info("next saved: already at the last saved view")
		return
	}
	s.savedCursor++
	s.loadSaved(nums[s.savedCursor])
}

func (s *Session) loadSaved(n int) {
	s.beginNavigation()
	snap, err := s.saved.Read(n)
	if err != nil {
		s.logger.Error("load saved view", slog.Int("n", n), slog.String("error", err.Error()))
		s.loading = false
		return
	}
	if snap == nil {
		s.logger.Warn("saved view missing or malformed", slog.Int("n", n))
		s.loading = false
		return
	}
	s.lastState = snap
	s.cmd.LoadSnapshot(s.image, snap)
	s.logger.Info("loaded saved view", slog.Int("n", n))
}

// Recenter pushes the initial view derived from pyramid metadata:
// zoom 0, centered with the aspect-ratio vertical offset applied. The
// viewer keeps existing annotations. Counts as navigation.
func (s *Session) Recenter(meta *pyramid.Metadata, startLevel int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if startLevel <= 0 {
		startLevel = meta.RecommendedStartLevel
	}
	if startLevel > meta.DZILevels-1 {
		startLevel = meta.DZILevels - 1
	}

	scale := float64(int(1) << (meta.DZILevels - 1 - startLevel))
	widthAtStart := float64(s.dims.Width) / scale
	heightAtStart := float64(s.dims.Height) / scale
	centerY := heightAtStart / 2 * meta.CenterOffsetY
	centerX := widthAtStart / 2

	s.beginNavigation()
	s.savedCursor = -1
	snap := &models.Snapshot{
		Zoom:        0,
		Center:      [2]float64{centerY, centerX},
		Annotations: []models.Polyline{},
		ImageName:   s.image,
		Timestamp:   s.now().Format(time.RFC3339),
	}
	s.cmd.LoadSnapshot(s.image, snap)
	s.logger.Info("recentered view",
		slog.Float64("center_y", centerY),
		slog.Float64("center_x", centerX))
}

// MarkDone toggles the done flag. Toggling in either direction clears
// ink_found.
func (s *Session) MarkDone() (models.ImageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status.Get(s.image)
	return s.status.Set(s.image, !st.Done, false)
}

// MarkInkFound toggles the ink_found flag alone.
func (s *Session) MarkInkFound() (models.ImageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status.Get(s.image)
	return s.status.Set(s.image, st.Done, !st.InkFound)
}

// beginNavigation sets the reentrancy guard before any state load.
func (s *Session) beginNavigation() {
	s.loading = true
	s.navTime = s.now()
}

func indexOf(nums []int, n int) int {
	for i, v := range nums {
		if v == n {
			return i
		}
	}
	return -1
}
