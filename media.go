package captionkit

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// MaxMediaSize is the largest file the service accepts.
const MaxMediaSize = 10 << 20

var acceptedMediaTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/gif":       {},
	"image/webp":      {},
	"video/mp4":       {},
	"video/quicktime": {},
}

var mediaTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

// MediaType guesses the content type of a file from its extension.
func MediaType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mediaTypesByExt[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ValidateMedia checks a file against the service's upload limits.
func ValidateMedia(name string, size int64, contentType string) error {
	if size > MaxMediaSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, size, MaxMediaSize)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if _, ok := acceptedMediaTypes[mediaType]; !ok {
		return fmt.Errorf("%w: %s (%s)", ErrUnsupportedMedia, name, contentType)
	}
	return nil
}
