package annostore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pathview/inkscan/internal/models"
	"github.com/pathview/inkscan/internal/pyramid"
)

type fakeCommander struct {
	mu       sync.Mutex
	requests []string
	loads    []*models.Snapshot
}

func (c *fakeCommander) RequestState(image string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, image)
}

func (c *fakeCommander) LoadSnapshot(image string, snap *models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = append(c.loads, snap)
}

func (c *fakeCommander) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeCommander) lastLoad() *models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.loads) == 0 {
		return nil
	}
	return c.loads[len(c.loads)-1]
}

func (c *fakeCommander) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loads)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSession(t *testing.T, maxLive int) (*Session, *fakeCommander, *fakeClock) {
	t.Helper()
	cmd := &fakeCommander{}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	s, err := NewSession(SessionConfig{
		Image:           "slide_a",
		Dimensions:      models.Dimensions{Width: 1200, Height: 900},
		AnnotationsDir:  t.TempDir(),
		Status:          NewStatusStore(filepath.Join(t.TempDir(), "ink_status.json")),
		Commander:       cmd,
		MaxLiveFiles:    maxLive,
		NavigationGrace: 2 * time.Second,
		Now:             clock.Now,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, cmd, clock
}

func stateWithZoom(zoom float64) *models.Snapshot {
	return &models.Snapshot{Zoom: zoom, Center: [2]float64{100, 200}, Annotations: []models.Polyline{}}
}

func liveCount(t *testing.T, s *Session) int {
	t.Helper()
	nums, err := s.live.Numbers()
	if err != nil {
		t.Fatal(err)
	}
	return len(nums)
}

func TestAutosaveChangeGating(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)

	s.Tick()
	if cmd.requestCount() != 1 {
		t.Fatalf("requests = %d, want 1", cmd.requestCount())
	}

	// First report is always persisted.
	s.HandleState(stateWithZoom(1.0))
	if got := liveCount(t, s); got != 1 {
		t.Fatalf("live files after initial state = %d, want 1", got)
	}

	// Identical state: no new file.
	s.HandleState(stateWithZoom(1.0))
	if got := liveCount(t, s); got != 1 {
		t.Fatalf("live files after unchanged state = %d, want 1", got)
	}

	// Changed state: new file.
	s.HandleState(stateWithZoom(2.0))
	if got := liveCount(t, s); got != 2 {
		t.Fatalf("live files after changed state = %d, want 2", got)
	}
}

func TestAutosaveStampsDimensions(t *testing.T) {
	s, _, _ := newTestSession(t, 100)
	s.HandleState(stateWithZoom(1.0))

	snap, err := s.live.Read(0)
	if err != nil || snap == nil {
		t.Fatalf("Read: %v, %v", snap, err)
	}
	if snap.ImageDimensions == nil || snap.ImageDimensions.Width != 1200 || snap.ImageDimensions.Height != 900 {
		t.Errorf("image_dimensions = %+v, want 1200x900", snap.ImageDimensions)
	}
}

func TestLiveTrackingEvictionCap(t *testing.T) {
	s, _, _ := newTestSession(t, 5)

	for i := 0; i < 10; i++ {
		s.HandleState(stateWithZoom(float64(i + 1)))
	}

	nums, err := s.live.Numbers()
	if err != nil {
		t.Fatal(err)
	}
	if len(nums) != 5 {
		t.Fatalf("live files = %d, want cap 5", len(nums))
	}
	// Numbering keeps growing; oldest files were evicted.
	if nums[0] != 5 || nums[4] != 9 {
		t.Errorf("remaining = %v, want [5..9]", nums)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)

	s.HandleState(stateWithZoom(1.0))
	s.HandleState(stateWithZoom(2.0))
	s.HandleState(stateWithZoom(3.0))

	s.Undo()
	loaded := cmd.lastLoad()
	if loaded == nil || loaded.Zoom != 2.0 {
		t.Fatalf("undo loaded %+v, want zoom 2.0", loaded)
	}

	// The echo of the loaded state is a reference update, not an edit.
	filesBefore := liveCount(t, s)
	s.HandleState(loaded)
	if got := liveCount(t, s); got != filesBefore {
		t.Fatalf("echo created a live file: %d -> %d", filesBefore, got)
	}

	s.Redo()
	loaded = cmd.lastLoad()
	if loaded == nil || loaded.Zoom != 3.0 {
		t.Fatalf("redo loaded %+v, want zoom 3.0", loaded)
	}
}

func TestUndoAtBoundary(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)
	s.HandleState(stateWithZoom(1.0))

	s.Undo()
	if cmd.loadCount() != 0 {
		t.Error("undo at the first state must not push a load")
	}

	s.Redo()
	if cmd.loadCount() != 0 {
		t.Error("redo at the latest state must not push a load")
	}
}

func TestNavigationSuppressesAutosave(t *testing.T) {
	s, cmd, clock := newTestSession(t, 100)
	s.HandleState(stateWithZoom(1.0))
	s.HandleState(stateWithZoom(2.0))

	s.Undo()
	if cmd.loadCount() != 1 {
		t.Fatalf("loads = %d, want 1", cmd.loadCount())
	}

	// While the load is in flight, ticks are silent.
	before := cmd.requestCount()
	s.Tick()
	if cmd.requestCount() != before {
		t.Fatal("tick during navigation load requested state")
	}

	// The echo lands, but the grace period still applies.
	s.HandleState(cmd.lastLoad())
	s.Tick()
	if cmd.requestCount() != before {
		t.Fatal("tick within navigation grace requested state")
	}

	clock.Advance(3 * time.Second)
	s.Tick()
	if cmd.requestCount() != before+1 {
		t.Fatal("tick after grace period did not request state")
	}
}

func TestSaveViewForcesStatusAndWritesSavedView(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)
	s.HandleState(stateWithZoom(1.0))

	s.SaveView()
	if got := s.status.Get("slide_a"); !got.Done || !got.InkFound {
		t.Fatalf("status after SaveView = %+v, want done and ink_found", got)
	}
	if cmd.requestCount() != 1 {
		t.Fatalf("SaveView requests = %d, want 1", cmd.requestCount())
	}

	// The next inbound state goes to saved_views, not live tracking.
	liveBefore := liveCount(t, s)
	s.HandleState(stateWithZoom(5.0))

	nums, err := s.saved.Numbers()
	if err != nil {
		t.Fatal(err)
	}
	if len(nums) != 1 {
		t.Fatalf("saved views = %d, want 1", len(nums))
	}
	if got := liveCount(t, s); got != liveBefore {
		t.Errorf("manual save leaked into live tracking: %d -> %d", liveBefore, got)
	}

	saved, err := s.saved.Read(nums[0])
	if err != nil || saved == nil {
		t.Fatalf("read saved view: %v, %v", saved, err)
	}
	if saved.ImageName != "slide_a" || saved.SavedAt == "" {
		t.Errorf("saved view missing provenance: %+v", saved)
	}

	// Manual save mode is one-shot.
	s.HandleState(stateWithZoom(6.0))
	if got, _ := s.saved.Numbers(); len(got) != 1 {
		t.Errorf("second state appended a saved view: %v", got)
	}
}

func TestSavedViewNavigationClamps(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)
	_ = s.saved.Write(0, stateWithZoom(10))
	_ = s.saved.Write(1, stateWithZoom(20))

	s.NextSaved()
	if got := cmd.lastLoad(); got == nil || got.Zoom != 10 {
		t.Fatalf("first next loaded %+v, want zoom 10", got)
	}
	s.NextSaved()
	if got := cmd.lastLoad(); got == nil || got.Zoom != 20 {
		t.Fatalf("second next loaded %+v, want zoom 20", got)
	}

	// At the last view: clamp, no further load.
	loads := cmd.loadCount()
	s.NextSaved()
	if cmd.loadCount() != loads {
		t.Fatal("next at the last saved view pushed a load")
	}

	s.PrevSaved()
	if got := cmd.lastLoad(); got == nil || got.Zoom != 10 {
		t.Fatalf("prev loaded %+v, want zoom 10", got)
	}

	// At the first view: clamp, no further load.
	loads = cmd.loadCount()
	s.PrevSaved()
	if cmd.loadCount() != loads {
		t.Fatal("prev at the first saved view pushed a load")
	}
}

func TestPrevSavedWithNoCursorClamps(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)
	_ = s.saved.Write(0, stateWithZoom(10))

	// No view loaded yet: prev clamps to the first without loading.
	s.PrevSaved()
	if cmd.loadCount() != 0 {
		t.Fatal("prev with no loaded view must not push a load")
	}
}

func TestRecenter(t *testing.T) {
	s, cmd, _ := newTestSession(t, 100)

	g := pyramid.NewGeometry(1200, 900, 256, 1)
	meta := pyramid.ComputeMetadata(g, "slide_a")

	s.Recenter(meta, 0)
	got := cmd.lastLoad()
	if got == nil {
		t.Fatal("recenter pushed no load")
	}
	if got.Zoom != 0 {
		t.Errorf("zoom = %v, want 0", got.Zoom)
	}
	// Start level clamps to 3 (scale 1); aspect 1.333 gives offset -1.15.
	if got.Center[0] != 900.0/2*-1.15 {
		t.Errorf("center_y = %v, want %v", got.Center[0], 900.0/2*-1.15)
	}
	if got.Center[1] != 600 {
		t.Errorf("center_x = %v, want 600", got.Center[1])
	}
	if got.Annotations == nil || len(got.Annotations) != 0 {
		t.Errorf("annotations = %+v, want empty list", got.Annotations)
	}
}

func TestMarkDoneClearsInkBothWays(t *testing.T) {
	s, _, _ := newTestSession(t, 100)

	if _, err := s.MarkInkFound(); err != nil {
		t.Fatal(err)
	}
	if got := s.status.Get("slide_a"); !got.InkFound {
		t.Fatalf("ink_found not set: %+v", got)
	}

	st, err := s.MarkDone()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Done || st.InkFound {
		t.Fatalf("first toggle = %+v, want done=true ink=false", st)
	}

	// Re-establish ink, then toggle done off: ink clears again.
	_, _ = s.MarkInkFound()
	st, err = s.MarkDone()
	if err != nil {
		t.Fatal(err)
	}
	if st.Done || st.InkFound {
		t.Fatalf("second toggle = %+v, want both false", st)
	}
}

func TestSessionResumesAtLatestLiveFile(t *testing.T) {
	cmd := &fakeCommander{}
	dir := t.TempDir()
	statusPath := filepath.Join(t.TempDir(), "ink_status.json")

	first, err := NewSession(SessionConfig{
		Image:          "slide_a",
		Dimensions:     models.Dimensions{Width: 100, Height: 100},
		AnnotationsDir: dir,
		Status:         NewStatusStore(statusPath),
		Commander:      cmd,
	})
	if err != nil {
		t.Fatal(err)
	}
	first.HandleState(stateWithZoom(1.0))
	first.HandleState(stateWithZoom(2.0))

	second, err := NewSession(SessionConfig{
		Image:          "slide_a",
		Dimensions:     models.Dimensions{Width: 100, Height: 100},
		AnnotationsDir: dir,
		Status:         NewStatusStore(statusPath),
		Commander:      cmd,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Undo from the resumed position steps back to the first file.
	second.Undo()
	if got := cmd.lastLoad(); got == nil || got.Zoom != 1.0 {
		t.Fatalf("undo after resume loaded %+v, want zoom 1.0", got)
	}
}
