// Package imaging rebuilds raster images from the two interlaced fields
// returned by the imager's pixel endpoint.
//
// The sensor clocks even and odd rows into separate fields. Each field line
// holds ReadWidth pixels of two bytes each, most significant byte first.
// Output row y comes from field (y+OffsetY)%2, line (y+OffsetY)/2.
package imaging

import (
	"errors"
	"fmt"
)

var ErrReconstructionOutOfBounds = errors.New("reconstruction reads past field buffer")

// Field names a parity of sensor rows.
type Field int

const (
	FieldEven Field = 0
	FieldOdd  Field = 1
)

func (f Field) String() string {
	if f == FieldOdd {
		return "odd"
	}
	return "even"
}

// Geometry describes how a frame is laid out in the fields and which window is kept.
type Geometry struct {
	// ReadWidth is the field line stride in pixels.
	ReadWidth int `yaml:"read_width"`
	// EvenRows and OddRows are the number of lines in each field.
	EvenRows      int `yaml:"even_rows"`
	OddRows       int `yaml:"odd_rows"`
	BytesPerPixel int `yaml:"bpp"`
	ImageWidth    int `yaml:"image_width"`
	ImageHeight   int `yaml:"image_height"`
	OffsetX       int `yaml:"offset_x"`
	OffsetY       int `yaml:"offset_y"`
}

// FieldSize returns the byte size of the field holding the given parity.
func (g Geometry) FieldSize(f Field) int {
	rows := g.EvenRows
	if f == FieldOdd {
		rows = g.OddRows
	}
	return g.BytesPerPixel * g.ReadWidth * rows
}

// ImageSize returns the byte size of the reconstructed image.
func (g Geometry) ImageSize() int {
	return g.BytesPerPixel * g.ImageWidth * g.ImageHeight
}

// Validate rejects geometries that cannot produce an image.
func (g Geometry) Validate() error {
	if g.ReadWidth <= 0 || g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return fmt.Errorf("geometry dimensions must be positive: read width %d, image %dx%d", g.ReadWidth, g.ImageWidth, g.ImageHeight)
	}
	if g.EvenRows < 0 || g.OddRows < 0 || g.OffsetX < 0 || g.OffsetY < 0 {
		return fmt.Errorf("geometry rows and offsets must not be negative")
	}
	if g.BytesPerPixel != 2 {
		return fmt.Errorf("unsupported bytes per pixel %d", g.BytesPerPixel)
	}
	return nil
}

// OutOfBoundsError reports a pixel whose source lies outside its field buffer.
type OutOfBoundsError struct {
	Field     Field
	Row       int
	Column    int
	Index     int
	FieldSize int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("pixel (%d,%d) maps to %s field byte %d, field has %d bytes", e.Column, e.Row, e.Field, e.Index, e.FieldSize)
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrReconstructionOutOfBounds
}

// Merge interleaves the even and odd fields into a single row-major image.
func Merge(even, odd []byte, g Geometry) (*Image, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	img := &Image{
		Width:         g.ImageWidth,
		Height:        g.ImageHeight,
		BytesPerPixel: g.BytesPerPixel,
		Pix:           make([]byte, 0, g.ImageSize()),
	}
	for y := 0; y < g.ImageHeight; y++ {
		lineStart := g.ReadWidth * ((y + g.OffsetY) / 2)
		parity := Field((y + g.OffsetY) % 2)
		src := even
		if parity == FieldOdd {
			src = odd
		}
		for x := 0; x < g.ImageWidth; x++ {
			idx := (lineStart + x + g.OffsetX) * 2
			if idx+1 >= len(src) {
				return nil, &OutOfBoundsError{Field: parity, Row: y, Column: x, Index: idx + 1, FieldSize: len(src)}
			}
			img.Pix = append(img.Pix, src[idx], src[idx+1])
		}
	}
	return img, nil
}
