// Package classify provides gallery.Classifier implementations.
package classify

import (
	"context"
	"image"
	"strings"

	"github.com/tendant/cloud-gallery/pkg/gallery/thumbnail"
)

// Static returns the same labels for every image. Useful for tests and
// local development without a classification service.
type Static struct {
	Labels []string
}

// NewStatic creates a Static classifier
func NewStatic(labels ...string) *Static {
	return &Static{Labels: labels}
}

func (s *Static) Classify(ctx context.Context, _ []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, s.Labels...), nil
}

// Heuristic labels an image by its orientation and dominant hue. It is
// deterministic and needs no external service.
type Heuristic struct{}

func (Heuristic) Classify(ctx context.Context, data []byte) ([]string, error) {
	img, err := thumbnail.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{orientation(img.Bounds()), dominantColor(img)}, nil
}

func orientation(b image.Rectangle) string {
	switch {
	case b.Dx() > b.Dy():
		return "landscape"
	case b.Dx() < b.Dy():
		return "portrait"
	default:
		return "square"
	}
}

// dominantColor samples up to 64x64 points and names the strongest channel.
func dominantColor(img image.Image) string {
	b := img.Bounds()
	stepX := max(1, b.Dx()/64)
	stepY := max(1, b.Dy()/64)

	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += uint64(cr)
			g += uint64(cg)
			bl += uint64(cb)
			n++
		}
	}
	if n == 0 {
		return "empty"
	}
	r, g, bl = r/n, g/n, bl/n

	const dark, light = 0x3000, 0xd000
	switch {
	case r < dark && g < dark && bl < dark:
		return "dark"
	case r > light && g > light && bl > light:
		return "bright"
	case r >= g && r >= bl:
		return "red"
	case g >= r && g >= bl:
		return "green"
	default:
		return "blue"
	}
}

// Normalize trims labels, drops empties and duplicates and keeps order.
func Normalize(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
