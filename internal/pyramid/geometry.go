// Package pyramid builds DZI deep-zoom tile pyramids from whole-slide images.
package pyramid

import "image"

// Geometry describes the level/tile layout of one pyramid. Level
// Levels-1 is full resolution; level 0 is downsampled until the long
// dimension fits in a single tile. Each step down halves both
// dimensions, rounding up.
type Geometry struct {
	Width    int
	Height   int
	TileSize int
	Overlap  int
	Levels   int
}

// NewGeometry computes the pyramid geometry for an image of w×h pixels.
func NewGeometry(w, h, tileSize, overlap int) Geometry {
	long := w
	if h > long {
		long = h
	}
	levels := 1
	for long > tileSize {
		long = (long + 1) / 2
		levels++
	}
	return Geometry{Width: w, Height: h, TileSize: tileSize, Overlap: overlap, Levels: levels}
}

// Scale returns the downsample factor between the given level and
// native resolution: 2^(Levels-1-level).
func (g Geometry) Scale(level int) int {
	return 1 << (g.Levels - 1 - level)
}

// LevelDims returns the pixel dimensions of the given level (ceil-halved
// from native, never below 1).
func (g Geometry) LevelDims(level int) (int, int) {
	s := g.Scale(level)
	return ceilDiv(g.Width, s), ceilDiv(g.Height, s)
}

// TileGrid returns the tile grid (cols, rows) of the given level.
func (g Geometry) TileGrid(level int) (cols, rows int) {
	w, h := g.LevelDims(level)
	return ceilDiv(w, g.TileSize), ceilDiv(h, g.TileSize)
}

// TotalTiles returns the tile count summed over all levels.
func (g Geometry) TotalTiles() int {
	total := 0
	for level := 0; level < g.Levels; level++ {
		c, r := g.TileGrid(level)
		total += c * r
	}
	return total
}

// TileRect returns the pixel region of one tile, both in level
// coordinates and in native coordinates. The level rect includes the
// overlap border except where the tile touches a pyramid edge, so edge
// tiles come out smaller than TileSize+2*Overlap.
func (g Geometry) TileRect(level, col, row int) (levelRect, nativeRect image.Rectangle) {
	lw, lh := g.LevelDims(level)

	x0 := col*g.TileSize - g.Overlap
	if x0 < 0 {
		x0 = 0
	}
	y0 := row*g.TileSize - g.Overlap
	if y0 < 0 {
		y0 = 0
	}
	x1 := (col+1)*g.TileSize + g.Overlap
	if x1 > lw {
		x1 = lw
	}
	y1 := (row+1)*g.TileSize + g.Overlap
	if y1 > lh {
		y1 = lh
	}
	levelRect = image.Rect(x0, y0, x1, y1)

	s := g.Scale(level)
	nx1 := x1 * s
	if nx1 > g.Width {
		nx1 = g.Width
	}
	ny1 := y1 * s
	if ny1 > g.Height {
		ny1 = g.Height
	}
	nativeRect = image.Rect(x0*s, y0*s, nx1, ny1)
	return levelRect, nativeRect
}

func ceilDiv(a, b int) int {
	n := (a + b - 1) / b
	if n < 1 {
		return 1
	}
	return n
}
