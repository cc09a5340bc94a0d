package inventory

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven catalog resync.
type EventCallback func()

// Watch starts an fsnotify watcher on the tiles root and the mapping
// file's directory, and resyncs the catalog when descriptors, pyramid
// metadata or the mapping file change, until ctx is cancelled. Events
// are debounced so a batch build settles into a single resync. It
// calls cb (if non-nil) after each resync.
//
// Only the top level of the tiles root is watched: tile writes inside
// the per-slide _files trees are high-volume and irrelevant to the
// catalog, which keys off the .dzi descriptor and metadata sidecars.
func Watch(ctx context.Context, db *DB, tilesDir, mappingFile string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(tilesDir); err != nil {
		return err
	}
	mappingDir := filepath.Dir(mappingFile)
	if mappingDir != tilesDir {
		if err := w.Add(mappingDir); err != nil {
			logger.Warn("watcher: watch mapping dir failed",
				slog.String("path", mappingDir),
				slog.String("error", err.Error()))
		}
	}

	logger.Info("watcher: started", slog.String("tiles", tilesDir), slog.String("mapping", mappingFile))

	var resyncTimer *time.Timer
	var resyncCh <-chan time.Time

	scheduleResync := func() {
		if resyncTimer == nil {
			resyncTimer = time.NewTimer(200 * time.Millisecond)
			resyncCh = resyncTimer.C
		} else {
			resyncTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if resyncTimer != nil {
				resyncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-resyncCh:
			if err := Sync(db, tilesDir, mappingFile, logger); err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: catalog resynced")
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev.Name, mappingFile) {
				continue
			}
			logger.Debug("watcher: change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			scheduleResync()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether a change to path can affect the catalog.
func relevant(path, mappingFile string) bool {
	if path == mappingFile {
		return true
	}
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".dzi") || strings.HasSuffix(name, "_metadata.json")
}
