// Package memory provides in-process collaborators: a document store with
// live subscriptions and an identity provider. Snapshots and auth
// notifications are delivered synchronously on the caller's goroutine.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"mypeeps/internal/document/model"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

type subscription struct {
	query model.Query
	fn    func([]model.Document)
}

// Store keeps documents in memory. Fail, when set, is consulted before
// every write and its error aborts the write.
type Store struct {
	Fail func(w model.Write) error

	// deliver serializes snapshot delivery so the last one a subscriber
	// sees reflects the latest committed state.
	deliver sync.Mutex

	mu     sync.Mutex
	docs   map[string]model.Document
	order  int64
	subs   map[int]*subscription
	nextID int
	writes []model.Write
}

func NewStore() *Store {
	return &Store{
		docs: make(map[string]model.Document),
		subs: make(map[int]*subscription),
	}
}

func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ids, err := s.Commit(ctx, []model.Write{{Op: model.OpSet, Collection: collection, Fields: fields}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.Commit(ctx, []model.Write{{Op: model.OpUpdate, Collection: collection, ID: id, Fields: fields}})
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.Commit(ctx, []model.Write{{Op: model.OpDelete, Collection: collection, ID: id}})
	return err
}

// Commit applies writes all-or-nothing and returns the ids they touched.
func (s *Store) Commit(ctx context.Context, writes []model.Write) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.Fail != nil {
		for _, w := range writes {
			if err := s.Fail(w); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
	}

	staged := maps.Clone(s.docs)
	order := s.order
	ids := make([]string, len(writes))
	touched := map[string]bool{}
	for i, w := range writes {
		switch w.Op {
		case model.OpSet:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			order++
			staged[id] = model.Document{ID: id, Collection: w.Collection, Fields: maps.Clone(w.Fields), CreatedAt: order, UpdatedAt: order}
			ids[i] = id
		case model.OpUpdate:
			d, ok := staged[w.ID]
			if !ok || d.Collection != w.Collection {
				s.mu.Unlock()
				return nil, fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			order++
			fields := maps.Clone(d.Fields)
			maps.Copy(fields, w.Fields)
			d.Fields = fields
			d.UpdatedAt = order
			staged[w.ID] = d
			ids[i] = w.ID
		case model.OpDelete:
			d, ok := staged[w.ID]
			if !ok || d.Collection != w.Collection {
				s.mu.Unlock()
				return nil, fmt.Errorf("delete %s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			delete(staged, w.ID)
			ids[i] = w.ID
		default:
			s.mu.Unlock()
			return nil, fmt.Errorf("unknown op %q", w.Op)
		}
		touched[w.Collection] = true
	}
	s.docs = staged
	s.order = order
	s.writes = append(s.writes, writes...)
	s.mu.Unlock()

	s.publish(touched)
	return ids, nil
}

// Subscribe delivers the current snapshot before returning, then again
// after every write to q's collection.
func (s *Store) Subscribe(q model.Query, fn func([]model.Document)) (func(), error) {
	s.deliver.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{query: q, fn: fn}
	docs := s.listLocked(q)
	s.mu.Unlock()
	fn(docs)
	s.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}, nil
}

// List returns the documents q selects.
func (s *Store) List(q model.Query) []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(q)
}

// Writes returns every committed write in order.
func (s *Store) Writes() []model.Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Write(nil), s.writes...)
}

// Subscribers counts live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) listLocked(q model.Query) []model.Document {
	all := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		d.Fields = maps.Clone(d.Fields)
		all = append(all, d)
	}
	if q.OrderBy == "" {
		// stable insertion order for unordered queries
		sortByCreated(all)
	}
	return q.Apply(all)
}

func (s *Store) publish(touched map[string]bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	var pending []func()
	for _, sub := range s.subs {
		if !touched[sub.query.Collection] {
			continue
		}
		fn, docs := sub.fn, s.listLocked(sub.query)
		pending = append(pending, func() { fn(docs) })
	}
	s.mu.Unlock()

	for _, p := range pending {
		p()
	}
}

func sortByCreated(docs []model.Document) {
	slices.SortFunc(docs, func(a, b model.Document) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
}
