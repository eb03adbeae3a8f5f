// Package remote talks to the mypeeps backend. One Client plays both the
// identity provider and the document store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	authModel "mypeeps/internal/auth/model"
	"mypeeps/internal/domain"

	"github.com/gorilla/websocket"
)

// APIError carries the server's message verbatim so it can be shown to users.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Credentials is what gets persisted between runs.
type Credentials struct {
	Token  string `yaml:"token" json:"token"`
	UserID string `yaml:"user_id" json:"user_id"`
	Email  string `yaml:"email" json:"email"`
}

// TokenStore persists credentials. Load returns a zero value when nothing
// is stored.
type TokenStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

type Client struct {
	base   string
	http   *http.Client
	dialer *websocket.Dialer
	tokens TokenStore

	mu        sync.Mutex
	creds     Credentials
	listeners map[int]func(*domain.Identity)
	nextID    int
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		listeners: make(map[int]func(*domain.Identity)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.Token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: e.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("%s %s: %s", method, path, resp.Status)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) auth(ctx context.Context, path, email, password string) error {
	var resp authModel.AuthResponse
	err := c.do(ctx, http.MethodPost, path, authModel.CredentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return err
	}
	c.setCredentials(Credentials{Token: resp.Token, UserID: resp.User.ID, Email: resp.User.Email})
	return nil
}
