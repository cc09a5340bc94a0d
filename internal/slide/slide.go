// Package slide abstracts read-only access to whole-slide image sources.
//
// The pyramid builder never touches pixels directly; it goes through the
// Slide interface so that scanner-specific readers (SVS/TIFF libraries,
// vendor SDKs) can be plugged in without changing the builder. Every
// handle returned by an Opener is independent: workers may hold one each
// with no shared mutable decoder state.
package slide

import (
	"image"
)

// Slide is an open, read-only handle to one slide image.
type Slide interface {
	// Dimensions returns the native (full resolution) pixel dimensions.
	Dimensions() (width, height int)
	// ReadRegion returns the native-resolution pixels inside r. The
	// region must intersect the image bounds; it is clipped to them.
	ReadRegion(r image.Rectangle) (image.Image, error)
	Close() error
}

// Opener opens fresh decoder handles for a slide file. Open must return
// a new independent handle on every call.
type Opener interface {
	Open(path string) (Slide, error)
}
