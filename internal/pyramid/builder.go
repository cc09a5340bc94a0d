package pyramid

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/pathview/inkscan/internal/slide"
)

// Format of the emitted tiles. Only PNG is produced.
const Format = "png"

// Builder converts whole-slide images into on-disk DZI pyramids.
// Tiles are generated across a worker pool; each worker opens its own
// decoder handle so no decoder state is shared.
type Builder struct {
	Opener   slide.Opener
	TileSize int
	Overlap  int
	Workers  int
	Logger   *slog.Logger
}

// NewBuilder creates a Builder. workers = 0 means one per CPU.
func NewBuilder(opener slide.Opener, tileSize, overlap, workers int, logger *slog.Logger) *Builder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{Opener: opener, TileSize: tileSize, Overlap: overlap, Workers: workers, Logger: logger}
}

// Result summarizes one pyramid build. A build with FailedTiles > 0 is
// valid-but-incomplete: the tile tree is left as-is and consumers must
// tolerate missing tiles.
type Result struct {
	DescriptorPath string
	MetadataPath   string
	TilesDir       string
	Geometry       Geometry
	Metadata       *Metadata
	TotalTiles     int
	SuccessTiles   int
}

// FailedTiles returns the number of tiles that could not be produced.
func (r *Result) FailedTiles() int {
	return r.TotalTiles - r.SuccessTiles
}

type tileJob struct {
	level, col, row int
}

// Build converts the image at imagePath into a pyramid under outputDir:
// <base>.dzi, <base>_files/<level>/<col>_<row>.png and
// <base>_metadata.json. An unreadable source image is fatal for this
// image; individual tile failures are logged and counted only.
// Rerunning overwrites any previous output for the same image.
func (b *Builder) Build(ctx context.Context, imagePath, outputDir string) (*Result, error) {
	probe, err := b.Opener.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("pyramid: open slide: %w", err)
	}
	width, height := probe.Dimensions()
	if err := probe.Close(); err != nil {
		b.Logger.Warn("close probe handle", slog.String("error", err.Error()))
	}

	geom := NewGeometry(width, height, b.TileSize, b.Overlap)
	baseName := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	tilesDir := filepath.Join(outputDir, baseName+"_files")

	b.Logger.Info("building pyramid",
		slog.String("image", baseName),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("levels", geom.Levels),
		slog.Int("tiles", geom.TotalTiles()),
		slog.Int("workers", b.Workers))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pyramid: create output dir: %w", err)
	}
	for level := 0; level < geom.Levels; level++ {
		if err := os.MkdirAll(filepath.Join(tilesDir, strconv.Itoa(level)), 0o755); err != nil {
			return nil, fmt.Errorf("pyramid: create level dir: %w", err)
		}
	}

	total := geom.TotalTiles()
	var success, processed atomic.Int64

	jobs := make(chan tileJob)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for level := 0; level < geom.Levels; level++ {
			cols, rows := geom.TileGrid(level)
			for col := 0; col < cols; col++ {
				for row := 0; row < rows; row++ {
					select {
					case jobs <- tileJob{level: level, col: col, row: row}:
					case <-gCtx.Done():
						return gCtx.Err()
					}
				}
			}
		}
		return nil
	})

	for i := 0; i < b.Workers; i++ {
		g.Go(func() error {
			// The handle is opened lazily and re-attempted per job, so a
			// failed open costs one tile, not the worker's whole share.
			var handle slide.Slide
			defer func() {
				if handle != nil {
					handle.Close()
				}
			}()
			for job := range jobs {
				done := processed.Add(1)
				if handle == nil {
					h, openErr := b.Opener.Open(imagePath)
					if openErr != nil {
						b.Logger.Warn("tile failed",
							slog.Int("level", job.level),
							slog.Int("col", job.col),
							slog.Int("row", job.row),
							slog.String("error", openErr.Error()))
						continue
					}
					handle = h
				}
				if tileErr := b.writeTile(handle, geom, tilesDir, job); tileErr != nil {
					b.Logger.Warn("tile failed",
						slog.Int("level", job.level),
						slog.Int("col", job.col),
						slog.Int("row", job.row),
						slog.String("error", tileErr.Error()))
					continue
				}
				success.Add(1)
				if done%500 == 0 {
					b.Logger.Debug("tile progress", slog.Int64("done", done), slog.Int("total", total))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pyramid: build %s: %w", baseName, err)
	}

	descriptorPath := filepath.Join(outputDir, baseName+".dzi")
	if err := WriteDescriptor(descriptorPath, NewDescriptor(geom, Format)); err != nil {
		return nil, err
	}

	meta := ComputeMetadata(geom, baseName)
	metadataPath := MetadataPath(outputDir, baseName)
	if err := WriteMetadata(metadataPath, meta); err != nil {
		return nil, err
	}

	b.Logger.Info("pyramid complete",
		slog.String("image", baseName),
		slog.Int64("success", success.Load()),
		slog.Int("total", total),
		slog.Int("start_level", meta.RecommendedStartLevel),
		slog.Float64("center_offset_y", meta.CenterOffsetY))

	return &Result{
		DescriptorPath: descriptorPath,
		MetadataPath:   metadataPath,
		TilesDir:       tilesDir,
		Geometry:       geom,
		Metadata:       meta,
		TotalTiles:     total,
		SuccessTiles:   int(success.Load()),
	}, nil
}

// writeTile extracts one tile region at native resolution, downsamples
// it to level resolution, and encodes it as PNG.
func (b *Builder) writeTile(handle slide.Slide, geom Geometry, tilesDir string, job tileJob) error {
	levelRect, nativeRect := geom.TileRect(job.level, job.col, job.row)

	src, err := handle.ReadRegion(nativeRect)
	if err != nil {
		return fmt.Errorf("read region: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, levelRect.Dx(), levelRect.Dy()))
	if geom.Scale(job.level) == 1 {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	path := filepath.Join(tilesDir, strconv.Itoa(job.level), fmt.Sprintf("%d_%d.png", job.col, job.row))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tile: %w", err)
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return fmt.Errorf("encode tile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tile: %w", err)
	}
	return nil
}
