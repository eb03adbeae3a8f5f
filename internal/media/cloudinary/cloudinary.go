package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"mypeeps/internal/media"
)

const DefaultBaseURL = "https://api.cloudinary.com"

var ErrNotConfigured = errors.New("image uploads are not configured (set CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET)")

// Client performs unsigned uploads with an upload preset.
type Client struct {
	endpoint   string
	preset     string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at a compatible host such as the peeps server.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.endpoint = strings.TrimRight(base, "/") + c.endpoint }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(cloudName, preset string, opts ...Option) (*Client, error) {
	if cloudName == "" || preset == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		endpoint:   "/v1_1/" + cloudName + "/upload",
		preset:     preset,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	base := DefaultBaseURL
	for _, opt := range opts {
		opt(c)
	}
	if strings.HasPrefix(c.endpoint, "/") {
		c.endpoint = base + c.endpoint
	}
	return c, nil
}

// Endpoint is the full upload URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type uploadResult struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload validates the image locally, posts it and returns secure_url.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if _, err := media.DetectImage(data); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	var result uploadResult
	decodeErr := json.Unmarshal(raw, &result)
	if resp.StatusCode/100 != 2 {
		if decodeErr == nil && result.Error != nil && result.Error.Message != "" {
			return "", fmt.Errorf("upload rejected: %s", result.Error.Message)
		}
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", decodeErr)
	}
	if result.SecureURL == "" {
		return "", errors.New("upload response has no secure_url")
	}
	return result.SecureURL, nil
}

var _ media.Uploader = (*Client)(nil)
