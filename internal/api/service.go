package api

import (
	"fmt"

	"github.com/pathview/inkscan/internal/annostore"
	"github.com/pathview/inkscan/internal/inventory"
	"github.com/pathview/inkscan/internal/models"
	"github.com/pathview/inkscan/internal/pyramid"
	"github.com/pathview/inkscan/internal/sse"
)

// Service coordinates the slide catalog, annotation sessions and the
// event broker for the API layer.
type Service struct {
	db      inventory.SlideIndex
	manager *annostore.Manager
	status  *annostore.StatusStore
	broker  *sse.Broker

	tilesDir   string
	startLevel int // config override, 0 = use pyramid metadata
}

// NewService creates a new API service.
func NewService(db inventory.SlideIndex, manager *annostore.Manager, status *annostore.StatusStore, broker *sse.Broker, tilesDir string, startLevel int) *Service {
	return &Service{
		db:         db,
		manager:    manager,
		status:     status,
		broker:     broker,
		tilesDir:   tilesDir,
		startLevel: startLevel,
	}
}

// ListSlides returns all cataloged slides with their annotation status.
func (s *Service) ListSlides() ([]SlideListItem, error) {
	rows, err := s.db.List()
	if err != nil {
		return nil, err
	}
	items := make([]SlideListItem, len(rows))
	for i, r := range rows {
		items[i] = SlideListItem{
			Name:        r.Name,
			EntryNumber: r.EntryNumber,
			SVSFile:     r.SVSFile,
			Collection:  r.Collection,
			Dimensions:  models.Dimensions{Width: r.Width, Height: r.Height},
			AspectRatio: r.AspectRatio,
			Status:      s.status.Get(r.Name),
		}
	}
	return items, nil
}

// GetSlide returns the full detail for one slide and opens its
// annotation session so state reports start being accepted.
func (s *Service) GetSlide(name string) (*SlideDetail, error) {
	row, err := s.db.Get(name)
	if err != nil {
		return nil, err
	}
	meta, err := s.metadata(name)
	if err != nil {
		return nil, err
	}

	if _, err := s.manager.Session(name, models.Dimensions{Width: row.Width, Height: row.Height}); err != nil {
		return nil, fmt.Errorf("api: open session for %s: %w", name, err)
	}

	return &SlideDetail{
		Name:                  row.Name,
		EntryNumber:           row.EntryNumber,
		SVSFile:               row.SVSFile,
		Collection:            row.Collection,
		Dimensions:            meta.OriginalDimensions,
		AspectRatio:           meta.AspectRatio,
		DZILevels:             meta.DZILevels,
		RecommendedStartLevel: s.effectiveStartLevel(meta),
		CenterOffsetY:         meta.CenterOffsetY,
		TileSize:              meta.TileSize,
		Overlap:               meta.Overlap,
		MMPerPixel:            pyramid.MMPerPixel(s.tilesDir, name),
		DZIPath:               "/dzi/" + name + ".dzi",
		Status:                s.status.Get(name),
	}, nil
}

// GetStatus returns the annotation status record for one slide.
func (s *Service) GetStatus(name string) (models.ImageStatus, error) {
	if _, err := s.db.Get(name); err != nil {
		return models.ImageStatus{}, err
	}
	return s.status.Get(name), nil
}

// SetStatus explicitly sets both status flags and broadcasts the change.
func (s *Service) SetStatus(name string, done, inkFound bool) (models.ImageStatus, error) {
	if _, err := s.db.Get(name); err != nil {
		return models.ImageStatus{}, err
	}
	st, err := s.status.Set(name, done, inkFound)
	if err != nil {
		return models.ImageStatus{}, err
	}
	s.broker.PublishStatus(name, st)
	return st, nil
}

// MarkDone toggles the done flag on a slide's status.
func (s *Service) MarkDone(name string) (models.ImageStatus, error) {
	sess, err := s.session(name)
	if err != nil {
		return models.ImageStatus{}, err
	}
	st, err := sess.MarkDone()
	if err != nil {
		return models.ImageStatus{}, err
	}
	s.broker.PublishStatus(name, st)
	return st, nil
}

// MarkInkFound toggles the ink_found flag on a slide's status.
func (s *Service) MarkInkFound(name string) (models.ImageStatus, error) {
	sess, err := s.session(name)
	if err != nil {
		return models.ImageStatus{}, err
	}
	st, err := sess.MarkInkFound()
	if err != nil {
		return models.ImageStatus{}, err
	}
	s.broker.PublishStatus(name, st)
	return st, nil
}

// Counts summarizes annotation progress.
func (s *Service) Counts() (CountsResponse, error) {
	rows, err := s.db.List()
	if err != nil {
		return CountsResponse{}, err
	}
	done, inkFound := s.status.Counts()
	return CountsResponse{Total: len(rows), Done: done, InkFound: inkFound}, nil
}

// HandleState routes an inbound viewer state report to its session.
func (s *Service) HandleState(name string, snap *models.Snapshot) {
	s.manager.HandleState(name, snap)
}

// Undo steps the slide's live-tracking position back one snapshot.
func (s *Service) Undo(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	sess.Undo()
	return nil
}

// Redo steps the slide's live-tracking position forward one snapshot.
func (s *Service) Redo(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	sess.Redo()
	return nil
}

// SaveView starts the manual checkpoint flow and broadcasts the forced
// status change.
func (s *Service) SaveView(name string) (models.ImageStatus, error) {
	sess, err := s.session(name)
	if err != nil {
		return models.ImageStatus{}, err
	}
	sess.SaveView()
	st := s.status.Get(name)
	s.broker.PublishStatus(name, st)
	return st, nil
}

// PrevSaved loads the previous saved view.
func (s *Service) PrevSaved(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	sess.PrevSaved()
	return nil
}

// NextSaved loads the next saved view.
func (s *Service) NextSaved(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	sess.NextSaved()
	return nil
}

// Recenter pushes the metadata-derived initial view to the viewer.
func (s *Service) Recenter(name string) error {
	sess, err := s.session(name)
	if err != nil {
		return err
	}
	meta, err := s.metadata(name)
	if err != nil {
		return err
	}
	sess.Recenter(meta, s.startLevel)
	return nil
}

// session returns the open (or newly opened) session for a cataloged
// slide.
func (s *Service) session(name string) (*annostore.Session, error) {
	row, err := s.db.Get(name)
	if err != nil {
		return nil, err
	}
	return s.manager.Session(name, models.Dimensions{Width: row.Width, Height: row.Height})
}

func (s *Service) metadata(name string) (*pyramid.Metadata, error) {
	return pyramid.ReadMetadata(pyramid.MetadataPath(s.tilesDir, name))
}

// effectiveStartLevel applies the configured start level override,
// clamped to the pyramid's deepest level.
func (s *Service) effectiveStartLevel(meta *pyramid.Metadata) int {
	level := s.startLevel
	if level <= 0 {
		level = meta.RecommendedStartLevel
	}
	if level > meta.DZILevels-1 {
		level = meta.DZILevels - 1
	}
	return level
}
