package inventory

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathview/inkscan/internal/models"
	"github.com/pathview/inkscan/internal/pyramid"
)

// Sync brings the catalog up to date with the filesystem:
//   - slides listed in the mapping file (or, when the mapping file is
//     absent, found by scanning tilesDir for .dzi descriptors) are
//     upserted with dimensions from their pyramid metadata
//   - slides removed from disk are deleted from the catalog
func Sync(db *DB, tilesDir, mappingFile string, logger *slog.Logger) error {
	entries := readMapping(mappingFile, logger)
	if len(entries) == 0 {
		entries = scanTilesDir(tilesDir, logger)
	}

	known, err := db.AllNames()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := slideName(e)
		if name == "" {
			continue
		}
		disk[name] = struct{}{}

		row := SlideRow{
			Name:           name,
			EntryNumber:    e.EntryNumber,
			SVSFile:        e.SVSFile,
			TilesDirectory: e.TilesDirectory,
			Collection:     e.CollectionName,
		}
		if meta, metaErr := pyramid.ReadMetadata(metadataPath(e, tilesDir, name)); metaErr == nil {
			row.Width = meta.OriginalDimensions.Width
			row.Height = meta.OriginalDimensions.Height
			row.AspectRatio = meta.AspectRatio
			row.DZILevels = meta.DZILevels
		} else {
			logger.Warn("sync: metadata unavailable", slog.String("slide", name), slog.String("error", metaErr.Error()))
		}

		if err := db.Upsert(row); err != nil {
			logger.Warn("sync: upsert failed", slog.String("slide", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: cataloged", slog.String("slide", name))
		}
	}

	// Remove stale entries.
	for name := range known {
		if _, ok := disk[name]; !ok {
			if err := db.Delete(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("slide", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("slide", name))
			}
		}
	}

	return nil
}

// readMapping loads the mapping file. A missing or malformed file is
// reported and treated as empty so the directory scan can take over.
func readMapping(path string, logger *slog.Logger) []models.MappingEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("sync: read mapping file", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	}
	var entries []models.MappingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("sync: parse mapping file", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return entries
}

// scanTilesDir synthesizes mapping entries from .dzi descriptors found
// directly under tilesDir.
func scanTilesDir(tilesDir string, logger *slog.Logger) []models.MappingEntry {
	dirents, err := os.ReadDir(tilesDir)
	if err != nil {
		logger.Warn("sync: scan tiles dir", slog.String("path", tilesDir), slog.String("error", err.Error()))
		return nil
	}

	var out []models.MappingEntry
	n := 0
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".dzi") {
			continue
		}
		base := strings.TrimSuffix(d.Name(), ".dzi")
		n++
		out = append(out, models.MappingEntry{
			EntryNumber:    n,
			SVSFile:        base + ".svs",
			TilesDirectory: base + "_files",
		})
	}
	return out
}

// metadataPath resolves a slide's pyramid metadata file. The metadata
// sidecar sits next to the tiles directory, so a mapping entry whose
// tiles_directory carries a path (pyramids living outside the configured
// tiles root) is resolved against that path's parent; bare directory
// names fall back to the tiles root.
func metadataPath(e models.MappingEntry, tilesDir, name string) string {
	if dir := filepath.Dir(e.TilesDirectory); dir != "." && dir != "" {
		return pyramid.MetadataPath(dir, name)
	}
	return pyramid.MetadataPath(tilesDir, name)
}

// slideName derives the slide name from a mapping entry: the tiles
// directory base with its _files suffix removed, falling back to the
// SVS file base.
func slideName(e models.MappingEntry) string {
	if e.TilesDirectory != "" {
		base := filepath.Base(e.TilesDirectory)
		return strings.TrimSuffix(base, "_files")
	}
	if e.SVSFile != "" {
		base := filepath.Base(e.SVSFile)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}
