package gallery

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	// OriginalPrefix is the key prefix for uploaded binaries.
	OriginalPrefix = "originals/"
	// ThumbnailPrefix is the key prefix for derived thumbnails.
	ThumbnailPrefix = "thumb/"
	// ThumbnailContentType is the content type of every derived thumbnail.
	ThumbnailContentType = "image/jpeg"
)

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// DefaultAllowedContentTypes are the content types accepted for upload when no
// list is configured.
var DefaultAllowedContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
}

// NormalizeContentType lowercases a MIME type and strips its parameters.
func NormalizeContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", fmt.Errorf("%w: empty content type", ErrInvalidContentType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContentType, err)
	}
	return mediaType, nil
}

// contentTypeAllowed matches a normalized type against an allow-list that may
// contain "type/*" wildcards.
func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == contentType {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

// OriginalKey returns the storage key for the original binary of an image.
func OriginalKey(id uuid.UUID, contentType string) string {
	ext, ok := extensionsByType[contentType]
	if !ok {
		ext = ".bin"
	}
	return OriginalPrefix + id.String() + ext
}

// ThumbnailKey returns the deterministic storage key for an image's thumbnail.
func ThumbnailKey(id uuid.UUID) string {
	return ThumbnailPrefix + id.String() + ".jpg"
}

// ImageIDFromKey derives the image id from the key of an original upload.
// Only keys of the exact shape OriginalKey produces are accepted: a canonical
// lowercase UUID directly under the originals prefix with a known extension.
// Anything else, thumbnails included, returns ErrIgnoredKey.
func ImageIDFromKey(key string) (uuid.UUID, error) {
	key = strings.TrimPrefix(key, "/")
	name, ok := strings.CutPrefix(key, OriginalPrefix)
	if !ok || strings.Contains(name, "/") {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrIgnoredKey, key)
	}
	ext := path.Ext(name)
	if !knownExtension(ext) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrIgnoredKey, key)
	}
	stem := strings.TrimSuffix(name, ext)
	id, err := uuid.Parse(stem)
	if err != nil || id.String() != stem {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrIgnoredKey, key)
	}
	return id, nil
}

func knownExtension(ext string) bool {
	if ext == ".bin" {
		return true
	}
	for _, e := range extensionsByType {
		if e == ext {
			return true
		}
	}
	return false
}
