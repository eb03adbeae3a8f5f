package local

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"mypeeps/internal/media"
	"mypeeps/pkg/logger"
	"mypeeps/pkg/metrics"
	"mypeeps/pkg/respond"

	"github.com/gorilla/mux"
)

// UploadResponse mirrors the fields of a Cloudinary upload result that clients read.
type UploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int    `json:"bytes"`
	Format    string `json:"format"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Handler serves a Cloudinary-compatible unsigned upload endpoint backed by Store.
type Handler struct {
	Store     *Store
	PublicURL string
}

func NewHandler(store *Store, publicURL string) *Handler {
	return &Handler{Store: store, PublicURL: strings.TrimRight(publicURL, "/")}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1_1/{cloudName}/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/v1_1/{cloudName}/image/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/media/{key}", h.Serve).Methods(http.MethodGet)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(media.MaxImageSize); err != nil {
		uploadError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	if strings.TrimSpace(r.FormValue("upload_preset")) == "" {
		uploadError(w, http.StatusBadRequest, "Upload preset must be specified when using unsigned upload")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		uploadError(w, http.StatusBadRequest, "Missing required parameter - file")
		return
	}
	defer closeWithLog(file, "upload file")

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Sugar.Errorf("Read upload failed: %v", err)
		uploadError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	mimeType, err := media.DetectImage(data)
	if err != nil {
		uploadError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.Store.Save(r.Context(), mimeType, bytes.NewReader(data))
	if err != nil {
		logger.Sugar.Errorf("Save upload failed: %v", err)
		uploadError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	respond.JSON(w, http.StatusOK, UploadResponse{
		SecureURL: h.publicBase(r) + "/media/" + key,
		PublicID:  strings.TrimSuffix(key, media.Extension(mimeType)),
		Bytes:     len(data),
		Format:    strings.TrimPrefix(media.Extension(mimeType), "."),
	})
}

// publicBase falls back to the request's own origin when no public URL is
// configured.
func (h *Handler) publicBase(r *http.Request) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	rc, mimeType, err := h.Store.Open(r.Context(), mux.Vars(r)["key"])
	if errors.Is(err, ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid media key")
		return
	}
	defer closeWithLog(rc, "media file")

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		logger.Sugar.Warnf("Failed to stream media: %v", err)
	}
}

func uploadError(w http.ResponseWriter, status int, msg string) {
	metrics.Uploads.WithLabelValues("error").Inc()
	var body cloudinaryError
	body.Error.Message = msg
	respond.JSON(w, status, body)
}

func closeWithLog(c io.Closer, label string) {
	if err := c.Close(); err != nil {
		logger.Sugar.Warnf("Failed to close %s: %v", label, err)
	}
}
