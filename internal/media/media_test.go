package media

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestDetectImage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr error
	}{
		{name: "png", data: pngHeader, want: "image/png"},
		{name: "jpeg", data: jpegHeader, want: "image/jpeg"},
		{name: "gif", data: gifHeader, want: "image/gif"},
		{name: "webp", data: webpHeader, want: "image/webp"},
		{name: "text", data: []byte("hello there"), wantErr: ErrUnsupportedImage},
		{name: "pdf", data: []byte("%PDF-1.7\n"), wantErr: ErrUnsupportedImage},
		{name: "empty", data: nil, wantErr: ErrEmptyImage},
		{name: "too large", data: append(bytes.Clone(pngHeader), make([]byte, MaxImageSize)...), wantErr: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectImage(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, ".webp", Extension("image/webp"))
	assert.Equal(t, ".jpg", Extension("image/jpeg"))
}
