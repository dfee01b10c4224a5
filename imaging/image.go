package imaging

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// Image is a row-major frame with big-endian 16-bit samples.
type Image struct {
	Width         int
	Height        int
	BytesPerPixel int
	Pix           []byte
}

// At returns the sample at (x, y).
func (img *Image) At(x, y int) uint16 {
	i := (y*img.Width + x) * img.BytesPerPixel
	return uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1])
}

// Gray16 exposes the frame as an image.Gray16 sharing the pixel buffer.
func (img *Image) Gray16() *image.Gray16 {
	return &image.Gray16{
		Pix:    img.Pix,
		Stride: img.Width * img.BytesPerPixel,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// WritePNG encodes the frame as a 16-bit grayscale PNG.
func (img *Image) WritePNG(w io.Writer) error {
	if err := png.Encode(w, img.Gray16()); err != nil {
		return fmt.Errorf("could not encode png: %w", err)
	}
	return nil
}

// WriteRaw dumps the samples as stored.
func (img *Image) WriteRaw(w io.Writer) error {
	_, err := w.Write(img.Pix)
	if err != nil {
		return fmt.Errorf("could not write raw image: %w", err)
	}
	return nil
}
