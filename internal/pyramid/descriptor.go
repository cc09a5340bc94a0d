package pyramid

import (
	"encoding/xml"
	"fmt"
	"os"
)

const dziNamespace = "http://schemas.microsoft.com/deepzoom/2008"

// Descriptor is the DZI descriptor file, written once per pyramid and
// read-only thereafter. The level count is not part of the DZI format;
// it is derivable from Size and persisted separately in the metadata.
type Descriptor struct {
	XMLName  xml.Name `xml:"Image"`
	XMLNS    string   `xml:"xmlns,attr"`
	TileSize int      `xml:"TileSize,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	Format   string   `xml:"Format,attr"`
	Size     Size     `xml:"Size"`
}

// Size holds the native image dimensions inside a descriptor.
type Size struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

// NewDescriptor builds the descriptor for a pyramid geometry.
func NewDescriptor(g Geometry, format string) *Descriptor {
	return &Descriptor{
		XMLNS:    dziNamespace,
		TileSize: g.TileSize,
		Overlap:  g.Overlap,
		Format:   format,
		Size:     Size{Width: g.Width, Height: g.Height},
	}
}

// Geometry reconstructs the pyramid geometry from a descriptor.
func (d *Descriptor) Geometry() Geometry {
	return NewGeometry(d.Size.Width, d.Size.Height, d.TileSize, d.Overlap)
}

// WriteDescriptor marshals d as XML to path.
func WriteDescriptor(path string, d *Descriptor) error {
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("pyramid: marshal descriptor: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("pyramid: write descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor parses the descriptor file at path.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyramid: read descriptor: %w", err)
	}
	var d Descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("pyramid: parse descriptor %s: %w", path, err)
	}
	return &d, nil
}
