package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mypeeps/config"
	"mypeeps/config/database"
	authModel "mypeeps/internal/auth/model"
	"mypeeps/internal/document/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Server{
		DBDriver:       config.DriverSQLite,
		JWTSecret:      "router-test",
		TokenTTL:       time.Hour,
		MediaDir:       t.TempDir(),
		MediaPublicURL: "http://media.test",
		CORSOrigins:    []string{"*"},
		Collections:    []string{"persons", "groups"},
	}
	db, err := database.Open(context.Background(), database.SQLite, database.SQLiteDSN(":memory:"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, database.SQLite))

	server, err := Setup(cfg, db, database.SQLite)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go server.Hub.Run(ctx)

	srv := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-server.Hub.Done()
		db.Close()
	})
	return srv
}

func call(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func register(t *testing.T, base, email string) authModel.AuthResponse {
	t.Helper()
	resp, raw := call(t, http.MethodPost, base+"/api/auth/register", "", authModel.CredentialsRequest{Email: email, Password: "hunter22"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out authModel.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestAuthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	ana := register(t, srv.URL, "ana@example.com")
	assert.NotEmpty(t, ana.Token)

	resp, raw := call(t, http.MethodPost, srv.URL+"/api/auth/register", "", authModel.CredentialsRequest{Email: "ana@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error":"email already registered"}`, string(raw))

	resp, raw = call(t, http.MethodPost, srv.URL+"/api/auth/login", "", authModel.CredentialsRequest{Email: "ana@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"invalid email or password"}`, string(raw))

	resp, raw = call(t, http.MethodGet, srv.URL+"/api/auth/me", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"`+ana.User.ID+`","email":"ana@example.com"}`, string(raw))

	resp, _ = call(t, http.MethodGet, srv.URL+"/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCollectionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ana := register(t, srv.URL, "ana@example.com")
	ben := register(t, srv.URL, "ben@example.com")
	base := srv.URL + "/api/collections/persons"

	resp, raw := call(t, http.MethodPost, base, ana.Token, model.InsertRequest{Fields: map[string]any{"uid": ana.User.ID, "name": "Ana", "createdAt": 1}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created model.InsertResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, _ = call(t, http.MethodPost, base, ben.Token, model.InsertRequest{Fields: map[string]any{"uid": ana.User.ID, "name": "Spoof"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, http.MethodPatch, base+"/"+created.ID, ana.Token, model.UpdateRequest{Fields: map[string]any{"notes": "hi"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, http.MethodPatch, base+"/"+created.ID, ben.Token, model.UpdateRequest{Fields: map[string]any{"notes": "mine now"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = call(t, http.MethodGet, base+"?where=uid=="+ana.User.ID+"&orderBy=createdAt&desc=true", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var docs []model.Document
	require.NoError(t, json.Unmarshal(raw, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "hi", docs[0].Fields["notes"])

	resp, _ = call(t, http.MethodGet, base+"?where=uid=="+ana.User.ID, ben.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, http.MethodGet, srv.URL+"/api/collections/secrets", ana.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = call(t, http.MethodPost, srv.URL+"/api/batch", ana.Token, model.BatchRequest{Writes: []model.Write{
		{Op: model.OpDelete, Collection: "persons", ID: created.ID},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = call(t, http.MethodDelete, base+"/"+created.ID, ana.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, raw := call(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(raw))

	ana := register(t, srv.URL, "ana@example.com")
	call(t, http.MethodPost, srv.URL+"/api/collections/groups", ana.Token, model.InsertRequest{Fields: map[string]any{"title": "Friends"}})

	resp, raw = call(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(raw), `mypeeps_document_writes_total{collection="groups",op="set"}`))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/collections/persons", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	pre.Body.Close()
	assert.Equal(t, http.StatusNoContent, pre.StatusCode)
	assert.Equal(t, "http://localhost:5173", pre.Header.Get("Access-Control-Allow-Origin"))
}
