package pyramid

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pathview/inkscan/internal/slide"
)

// writeTestImage writes a 600x400 gradient PNG and returns its path.
func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "sample.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuildCompletePyramid(t *testing.T) {
	dir := t.TempDir()
	input := writeTestImage(t, dir)
	outDir := filepath.Join(dir, "out")

	b := NewBuilder(slide.ImageOpener{}, 256, 1, 2, quietLogger())
	res, err := b.Build(context.Background(), input, outDir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// 600x400 with 256px tiles: 3 levels (600 -> 300 -> 150).
	if res.Geometry.Levels != 3 {
		t.Fatalf("levels = %d, want 3", res.Geometry.Levels)
	}
	if res.FailedTiles() != 0 {
		t.Fatalf("failed tiles = %d, want 0", res.FailedTiles())
	}

	// Every tile of every level must exist and match its level rect.
	for level := 0; level < res.Geometry.Levels; level++ {
		cols, rows := res.Geometry.TileGrid(level)
		for col := 0; col < cols; col++ {
			for row := 0; row < rows; row++ {
				path := filepath.Join(res.TilesDir, fmt.Sprint(level), fmt.Sprintf("%d_%d.png", col, row))
				f, err := os.Open(path)
				if err != nil {
					t.Fatalf("missing tile %d/%d_%d: %v", level, col, row, err)
				}
				img, decodeErr := png.Decode(f)
				f.Close()
				if decodeErr != nil {
					t.Fatalf("decode tile %d/%d_%d: %v", level, col, row, decodeErr)
				}
				levelRect, _ := res.Geometry.TileRect(level, col, row)
				if img.Bounds().Dx() != levelRect.Dx() || img.Bounds().Dy() != levelRect.Dy() {
					t.Errorf("tile %d/%d_%d size = %v, want %dx%d",
						level, col, row, img.Bounds().Size(), levelRect.Dx(), levelRect.Dy())
				}
			}
		}
	}

	// Descriptor and metadata sidecars.
	d, err := ReadDescriptor(res.DescriptorPath)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if d.Size.Width != 600 || d.Size.Height != 400 {
		t.Errorf("descriptor size = %+v", d.Size)
	}
	m, err := ReadMetadata(res.MetadataPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if m.DZILevels != 3 || m.CenterOffsetY != -1.15 {
		t.Errorf("metadata = %+v", m)
	}
}

func TestBuildUnreadableSourceIsFatal(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.png")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(slide.ImageOpener{}, 256, 1, 1, quietLogger())
	if _, err := b.Build(context.Background(), bogus, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for undecodable source")
	}
}

// failAfterProbeOpener succeeds on the first Open (the dimension probe)
// and fails on all worker opens.
type failAfterProbeOpener struct {
	inner slide.Opener
	calls atomic.Int32
}

func (o *failAfterProbeOpener) Open(path string) (slide.Slide, error) {
	if o.calls.Add(1) == 1 {
		return o.inner.Open(path)
	}
	return nil, fmt.Errorf("decoder handle exhausted")
}

// flakyOpener fails exactly one Open call (the first worker open after
// the dimension probe) and succeeds otherwise.
type flakyOpener struct {
	inner slide.Opener
	calls atomic.Int32
}

func (o *flakyOpener) Open(path string) (slide.Slide, error) {
	if o.calls.Add(1) == 2 {
		return nil, fmt.Errorf("transient decoder failure")
	}
	return o.inner.Open(path)
}

func TestBuildRetriesOpenPerTile(t *testing.T) {
	dir := t.TempDir()
	input := writeTestImage(t, dir)

	opener := &flakyOpener{inner: slide.ImageOpener{}}
	b := NewBuilder(opener, 256, 1, 2, quietLogger())

	res, err := b.Build(context.Background(), input, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// One failed open costs one tile; the worker recovers on its next job.
	if res.FailedTiles() != 1 {
		t.Errorf("failed tiles = %d, want 1", res.FailedTiles())
	}
	if res.SuccessTiles != res.TotalTiles-1 {
		t.Errorf("success tiles = %d, want %d", res.SuccessTiles, res.TotalTiles-1)
	}
}

func TestBuildTileFailuresAreNonFatal(t *testing.T) {
	dir := t.TempDir()
	input := writeTestImage(t, dir)

	opener := &failAfterProbeOpener{inner: slide.ImageOpener{}}
	b := NewBuilder(opener, 256, 1, 2, quietLogger())

	res, err := b.Build(context.Background(), input, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.SuccessTiles != 0 {
		t.Errorf("success tiles = %d, want 0", res.SuccessTiles)
	}
	if res.FailedTiles() != res.TotalTiles {
		t.Errorf("failed = %d, want all %d", res.FailedTiles(), res.TotalTiles)
	}

	// Descriptor and metadata are still written for the partial build.
	if _, err := os.Stat(res.DescriptorPath); err != nil {
		t.Errorf("descriptor missing: %v", err)
	}
	if _, err := os.Stat(res.MetadataPath); err != nil {
		t.Errorf("metadata missing: %v", err)
	}
}
