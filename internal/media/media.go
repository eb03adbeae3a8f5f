package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
)

// MaxImageSize caps both client uploads and the hosting endpoint.
const MaxImageSize = 10 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrTooLarge         = fmt.Errorf("image exceeds %d MB", MaxImageSize>>20)
	ErrEmptyImage       = errors.New("image is empty")
)

// Uploader sends an image to a media host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// photoTypes are the sniffed types a photo may have besides WebP.
var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// webp: "RIFF", a 4-byte length, then "WEBP".
func webp(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// DetectImage returns the MIME type of an acceptable photo.
func DetectImage(data []byte) (string, error) {
	switch {
	case len(data) == 0:
		return "", ErrEmptyImage
	case len(data) > MaxImageSize:
		return "", ErrTooLarge
	case webp(data):
		return "image/webp", nil
	}
	mime := http.DetectContentType(data)
	if photoTypes[mime] {
		return mime, nil
	}
	return "", ErrUnsupportedImage
}

// Extension maps an accepted MIME type to a file extension.
func Extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
