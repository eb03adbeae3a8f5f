package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mypeeps/internal/document/model"
	"mypeeps/pkg/logger"
	"mypeeps/socket"

	"github.com/gorilla/websocket"
)

func collectionPath(collection string, id ...string) string {
	p := "/api/collections/" + url.PathEscape(collection)
	for _, part := range id {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var resp model.InsertResponse
	if err := c.do(ctx, http.MethodPost, collectionPath(collection), model.InsertRequest{Fields: fields}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, collectionPath(collection, id), model.UpdateRequest{Fields: fields}, nil)
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, collectionPath(collection, id), nil, nil)
}

// Commit sends writes as one transaction.
func (c *Client) Commit(ctx context.Context, writes []model.Write) ([]string, error) {
	var resp model.BatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/batch", model.BatchRequest{Writes: writes}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// List fetches q once without subscribing.
func (c *Client) List(ctx context.Context, q model.Query) ([]model.Document, error) {
	v := q.Values()
	v.Del("collection")
	var docs []model.Document
	if err := c.do(ctx, http.MethodGet, collectionPath(q.Collection)+"?"+v.Encode(), nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) wsURL(q model.Query) string {
	base := c.base
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?" + q.Values().Encode()
}

// Subscribe opens a websocket for q and calls onSnapshot from a reader
// goroutine for every snapshot. Unsubscribe closes the socket and waits
// for the reader to exit.
func (c *Client) Subscribe(q model.Query, onSnapshot func([]model.Document)) (func(), error) {
	header := http.Header{}
	if tok := c.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(q), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			var e struct {
				Error string `json:"error"`
			}
			if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
				return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
			}
			return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("subscribe %s: %s", q.Collection, resp.Status)}
		}
		return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg socket.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !closedNormally(err) {
					logger.Sugar.Warnf("Subscription to %s ended: %v", q.Collection, err)
				}
				return
			}
			switch msg.Type {
			case socket.SnapshotType:
				var docs []model.Document
				if err := json.Unmarshal(msg.Payload, &docs); err != nil {
					logger.Sugar.Errorf("Bad snapshot for %s: %v", q.Collection, err)
					continue
				}
				onSnapshot(docs)
			case socket.ErrorType:
				logger.Sugar.Warnf("Server could not load %s: %s", q.Collection, string(msg.Payload))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
			conn.Close()
			<-done
		})
	}, nil
}

func closedNormally(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed)
}
