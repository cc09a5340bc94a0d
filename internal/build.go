package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathview/inkscan/internal/models"
	"github.com/pathview/inkscan/internal/pyramid"
	"github.com/pathview/inkscan/internal/slide"
)

// RunBuild converts each input image into a deep-zoom pyramid under the
// configured tiles directory and registers it in the mapping file. A
// directory argument is expanded to the image files directly inside it.
// A failed input is reported and skipped; the batch continues.
func RunBuild(ctx context.Context, cfg *Config, args []string) error {
	logger := newLogger(cfg)

	if len(args) == 0 {
		return fmt.Errorf("build: at least one input image or directory is required")
	}
	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("build: no image files found in %v", args)
	}
	if err := os.MkdirAll(cfg.Data.TilesDir, 0o755); err != nil {
		return fmt.Errorf("build: create tiles dir: %w", err)
	}

	builder := pyramid.NewBuilder(slide.ImageOpener{},
		cfg.Pyramid.TileSize, cfg.Pyramid.Overlap, cfg.Pyramid.Workers, logger)

	failed := 0
	for _, input := range inputs {
		res, err := builder.Build(ctx, input, cfg.Data.TilesDir)
		if err != nil {
			logger.Error("pyramid build failed",
				slog.String("input", input),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		if err := registerSlide(cfg.Data.MappingFile, input, res.TilesDir); err != nil {
			logger.Warn("mapping file update failed",
				slog.String("input", input),
				slog.String("error", err.Error()))
		}
	}

	if failed == len(inputs) {
		return fmt.Errorf("build: all %d inputs failed", failed)
	}
	logger.Info("batch build finished",
		slog.Int("built", len(inputs)-failed),
		slog.Int("failed", failed))
	return nil
}

// expandInputs resolves each argument: directories contribute the image
// files directly inside them, files pass through as-is.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("build: stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("build: read dir %s: %w", arg, err)
		}
		for _, e := range entries {
			if e.IsDir() || !isImageFile(e.Name()) {
				continue
			}
			inputs = append(inputs, filepath.Join(arg, e.Name()))
		}
	}
	return inputs, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".svs", ".tif", ".tiff", ".png", ".jpg", ".jpeg", ".bmp":
		return true
	}
	return false
}

// registerSlide appends an entry for the built pyramid to the mapping
// file, keeping existing entries and numbering intact. A slide already
// present keeps its entry.
func registerSlide(mappingFile, input, tilesDir string) error {
	var entries []models.MappingEntry
	if data, err := os.ReadFile(mappingFile); err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse mapping file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read mapping file: %w", err)
	}

	base := filepath.Base(tilesDir)
	maxEntry := 0
	for _, e := range entries {
		if filepath.Base(e.TilesDirectory) == base {
			return nil
		}
		if e.EntryNumber > maxEntry {
			maxEntry = e.EntryNumber
		}
	}

	svs := filepath.Base(input)
	if !strings.HasSuffix(svs, ".svs") {
		svs = strings.TrimSuffix(svs, filepath.Ext(svs)) + ".svs"
	}
	entries = append(entries, models.MappingEntry{
		EntryNumber:    maxEntry + 1,
		SVSFile:        svs,
		TilesDirectory: base,
	})

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mappingFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(mappingFile, out, 0o644)
}
