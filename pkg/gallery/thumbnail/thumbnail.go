// Package thumbnail derives fixed-size JPEG thumbnails from uploaded images.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

const (
	DefaultSize    = 256
	DefaultQuality = 85
)

// Generator downscales images to fit inside a Size x Size box, keeping the
// aspect ratio. Images already smaller than the box are not enlarged.
type Generator struct {
	Size    int
	Quality int
}

// New returns a Generator with the default size and quality
func New() *Generator {
	return &Generator{Size: DefaultSize, Quality: DefaultQuality}
}

// Thumbnail decodes image bytes and returns the encoded JPEG thumbnail.
// Output is a pure function of the input bytes.
func (g *Generator) Thumbnail(ctx context.Context, data []byte) ([]byte, error) {
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := g.Size
	if size <= 0 {
		size = DefaultSize
	}
	quality := g.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	thumb := imaging.Fit(src, size, size, imaging.Lanczos)
	return EncodeJPEG(thumb, quality)
}

// Decode reads any format registered with imaging (jpeg, png, gif, bmp, tiff)
// and applies EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gallery.ErrInvalidImage, err)
	}
	return img, nil
}

// EncodeJPEG encodes img as JPEG at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
