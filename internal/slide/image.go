package slide

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	// Registered decoders. TIFF matters most here: SVS containers are
	// TIFF-based and single-layer exports decode directly.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageOpener opens slides through the standard image decoders. Each
// Open call decodes the file into memory, so every handle is fully
// independent of the others.
type ImageOpener struct{}

// Open decodes the image at path and returns a handle over it.
func (ImageOpener) Open(path string) (Slide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("slide: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("slide: decode %s: %w", path, err)
	}
	return &imageSlide{img: img}, nil
}

type imageSlide struct {
	img image.Image
}

func (s *imageSlide) Dimensions() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *imageSlide) ReadRegion(r image.Rectangle) (image.Image, error) {
	clipped := r.Intersect(s.img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("slide: region %v outside image bounds %v", r, s.img.Bounds())
	}
	if sub, ok := s.img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(clipped), nil
	}
	dst := image.NewRGBA(clipped)
	draw.Draw(dst, clipped, s.img, clipped.Min, draw.Src)
	return dst, nil
}

func (s *imageSlide) Close() error { return nil }
