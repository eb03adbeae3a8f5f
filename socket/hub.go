package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mypeeps/internal/document/model"
	"mypeeps/pkg/logger"
	"mypeeps/pkg/metrics"
)

const (
	SnapshotType = "SNAPSHOT" // Full ordered result of the subscriber's query
	ErrorType    = "ERROR"    // Snapshot could not be loaded

	snapshotTimeout = 5 * time.Second
)

type WSMessage struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
}

// Source loads feeds and decides who may subscribe to what.
type Source interface {
	Snapshot(ctx context.Context, ownerID, collection string) ([]model.Document, error)
	Authorize(userID string, q model.Query) error
}

// Feed identifies one owner's collection. Each feed has its own room.
type Feed struct {
	OwnerID    string
	Collection string
}

type Hub struct {
	Rooms      map[Feed]map[*Client]bool
	Broadcast  chan Feed
	Register   chan *Client
	Unregister chan *Client
	source     Source
	mu         sync.Mutex
	done       chan struct{}
}

func NewHub(source Source) *Hub {
	return &Hub{
		Rooms:      make(map[Feed]map[*Client]bool),
		Broadcast:  make(chan Feed, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		source:     source,
		done:       make(chan struct{}),
	}
}

// Run owns room membership until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			feed := client.Feed()
			h.mu.Lock()
			if h.Rooms[feed] == nil {
				h.Rooms[feed] = make(map[*Client]bool)
			}
			h.Rooms[feed][client] = true
			h.mu.Unlock()
			metrics.Subscribers.Inc()

			// The new subscriber gets the current state straight away.
			docs, err := h.load(ctx, feed)
			h.deliver(feed, []*Client{client}, docs, err)

		case client := <-h.Unregister:
			h.remove(client)

		case feed := <-h.Broadcast:
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.Rooms[feed]))
			for client := range h.Rooms[feed] {
				clients = append(clients, client)
			}
			h.mu.Unlock()
			if len(clients) == 0 {
				continue
			}
			docs, err := h.load(ctx, feed)
			h.deliver(feed, clients, docs, err)
		}
	}
}

// Publish marks a feed as changed. It never blocks once the hub has stopped.
func (h *Hub) Publish(ownerID, collection string) {
	select {
	case h.Broadcast <- Feed{OwnerID: ownerID, Collection: collection}:
	case <-h.done:
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribers reports how many clients follow a feed.
func (h *Hub) Subscribers(feed Feed) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[feed])
}

func (h *Hub) load(ctx context.Context, feed Feed) ([]model.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	docs, err := h.source.Snapshot(ctx, feed.OwnerID, feed.Collection)
	if err != nil {
		logger.Sugar.Errorf("Failed to load feed %s/%s: %v", feed.OwnerID, feed.Collection, err)
	}
	return docs, err
}

// deliver sends each client its own view of docs. Lagging clients are dropped.
func (h *Hub) deliver(feed Feed, clients []*Client, docs []model.Document, loadErr error) {
	for _, client := range clients {
		msg := WSMessage{Type: SnapshotType, Collection: feed.Collection, UserID: feed.OwnerID}
		if loadErr != nil {
			msg.Type = ErrorType
			msg.Payload, _ = json.Marshal(map[string]string{"error": "failed to load snapshot"})
		} else {
			payload, err := json.Marshal(client.Query.Apply(docs))
			if err != nil {
				logger.Sugar.Errorf("Error marshalling snapshot: %v", err)
				continue
			}
			msg.Payload = payload
		}
		raw, err := json.Marshal(msg)
		if err != nil {
			logger.Sugar.Errorf("Error marshalling message: %v", err)
			continue
		}

		select {
		case client.Send <- raw:
			metrics.SnapshotsSent.Inc()
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	feed := client.Feed()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Rooms[feed][client]; !ok {
		return
	}
	delete(h.Rooms[feed], client)
	close(client.Send)
	metrics.Subscribers.Dec()
	if len(h.Rooms[feed]) == 0 {
		delete(h.Rooms, feed)
		logger.Sugar.Debugf("Closed empty room %s/%s", feed.OwnerID, feed.Collection)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for feed, clients := range h.Rooms {
		for client := range clients {
			close(client.Send)
			metrics.Subscribers.Dec()
		}
		delete(h.Rooms, feed)
	}
}
