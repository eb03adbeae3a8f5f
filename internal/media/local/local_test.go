package local

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func TestStoreSaveOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Save(ctx, "image/png", bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".png"))

	rc, mimeType, err := store.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, pngData, got)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = store.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), "../../etc/passwd")
	assert.ErrorContains(t, err, "path traversal")
	_, _, err = store.Open(context.Background(), "..")
	assert.ErrorContains(t, err, "path traversal")
}

func newUploadServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	r := mux.NewRouter()
	srv := httptest.NewServer(r)
	NewHandler(store, srv.URL+"/").Register(r)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, preset string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile("file", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if preset != "" {
		require.NoError(t, mw.WriteField("upload_preset", preset))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	srv := newUploadServer(t)

	body, contentType := multipartBody(t, "unsigned", pngData)
	resp, err := http.Post(srv.URL+"/v1_1/demo/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, strings.HasPrefix(result.SecureURL, srv.URL+"/media/"))
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, len(pngData), result.Bytes)

	img, err := http.Get(result.SecureURL)
	require.NoError(t, err)
	defer img.Body.Close()
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	got, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, pngData, got)
}

func TestUploadRejections(t *testing.T) {
	srv := newUploadServer(t)

	tests := []struct {
		name    string
		preset  string
		data    []byte
		message string
	}{
		{name: "no preset", data: pngData, message: "Upload preset must be specified"},
		{name: "no file", preset: "unsigned", message: "Missing required parameter - file"},
		{name: "not an image", preset: "unsigned", data: []byte("just text"), message: "unsupported image format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.preset, tt.data)
			resp, err := http.Post(srv.URL+"/v1_1/demo/upload", contentType, body)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var result cloudinaryError
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Contains(t, result.Error.Message, tt.message)
		})
	}
}

func TestServeMissing(t *testing.T) {
	srv := newUploadServer(t)

	resp, err := http.Get(srv.URL + "/media/nope.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
