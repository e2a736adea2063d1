// Package imaging encodes plant and profile pictures for storage and mirrors
// them to blob storage.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Uploads may arrive as PNG or GIF; they are re-encoded as JPEG.
	_ "image/gif"
	_ "image/png"
)

// Quality is the fixed JPEG quality used for every stored image.
const Quality = 80

// PlaceholderSize is the edge length of the generated placeholder.
const PlaceholderSize = 256

// Upload bounds checked against the header before any pixel is decoded.
const (
	MaxDimension = 8192
	MaxPixels    = 40_000_000
)

var (
	// ErrNilImage is returned when encoding a nil image.
	ErrNilImage = errors.New("imaging: nil image")
	// ErrTooLarge is returned for images whose header exceeds the pixel budget.
	ErrTooLarge = errors.New("imaging: image dimensions too large")
)

// Encode serialises img as JPEG at Quality.
func Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses any registered image format. It returns nil for empty,
// undecodable or oversized input.
func Decode(b []byte) image.Image {
	img, err := decode(b)
	if err != nil {
		return nil
	}
	return img
}

func decode(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, errors.New("imaging: empty input")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension ||
		cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// DecodeOrPlaceholder decodes b, falling back to Placeholder.
func DecodeOrPlaceholder(b []byte) image.Image {
	if img := Decode(b); img != nil {
		return img
	}
	return Placeholder()
}

var (
	leaf = color.RGBA{R: 0x6a, G: 0x9f, B: 0x58, A: 0xff}
	soil = color.RGBA{R: 0x8b, G: 0x5a, B: 0x3c, A: 0xff}
	sky  = color.RGBA{R: 0xee, G: 0xf4, B: 0xe8, A: 0xff}
)

// Placeholder draws a flat pot-and-leaf tile shown when a plant has no cover.
func Placeholder() image.Image {
	const n = PlaceholderSize
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := sky
			dx, dy := x-n/2, y-n/2+n/8
			switch {
			case y > n*5/8 && x > n/3 && x < n*2/3:
				c = soil
			case dx*dx+dy*dy < (n/4)*(n/4):
				c = leaf
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
