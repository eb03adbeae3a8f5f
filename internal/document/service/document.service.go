package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mypeeps/internal/document/model"
	"mypeeps/internal/document/repository"
	"mypeeps/pkg/metrics"
)

// OwnerField is the document field that must name the owning user.
const OwnerField = "uid"

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrForbidden         = errors.New("document belongs to another user")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = repository.ErrNotFound
)

// Notifier is told after every committed write so live subscribers can be refreshed.
type Notifier interface {
	Publish(ownerID, collection string)
}

type DocumentService struct {
	Repo        *repository.DocumentRepository
	Hub         Notifier
	collections map[string]bool
	now         func() time.Time
}

func NewDocumentService(repo *repository.DocumentRepository, hub Notifier, collections []string) *DocumentService {
	allowed := make(map[string]bool, len(collections))
	for _, c := range collections {
		allowed[c] = true
	}
	return &DocumentService{Repo: repo, Hub: hub, collections: allowed, now: time.Now}
}

func (s *DocumentService) Insert(ctx context.Context, userID, collection string, fields map[string]any) (string, error) {
	if err := s.checkCollection(collection); err != nil {
		return "", err
	}
	fields, err := s.ownFields(userID, fields, true)
	if err != nil {
		return "", err
	}
	now := s.now().UnixMilli()
	doc := &model.Document{Collection: collection, OwnerID: userID, Fields: fields, CreatedAt: now, UpdatedAt: now}
	if err := s.Repo.Insert(ctx, doc); err != nil {
		return "", err
	}
	s.committed(userID, collection, model.OpSet)
	return doc.ID, nil
}

func (s *DocumentService) Update(ctx context.Context, userID, collection, id string, fields map[string]any) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	if id == "" || len(fields) == 0 {
		return fmt.Errorf("%w: id and fields are required", ErrInvalidInput)
	}
	fields, err := s.ownFields(userID, fields, false)
	if err != nil {
		return err
	}
	if err := s.Repo.Merge(ctx, collection, id, userID, fields, s.now().UnixMilli()); err != nil {
		return err
	}
	s.committed(userID, collection, model.OpUpdate)
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, collection, id string) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, collection, id, userID); err != nil {
		return err
	}
	s.committed(userID, collection, model.OpDelete)
	return nil
}

// Commit applies writes atomically and notifies each touched feed once.
func (s *DocumentService) Commit(ctx context.Context, userID string, writes []model.Write) ([]string, error) {
	if len(writes) == 0 {
		return []string{}, nil
	}
	prepared := make([]model.Write, len(writes))
	for i, w := range writes {
		if err := s.checkCollection(w.Collection); err != nil {
			return nil, err
		}
		switch w.Op {
		case model.OpSet, model.OpUpdate:
			fields, err := s.ownFields(userID, w.Fields, w.Op == model.OpSet)
			if err != nil {
				return nil, err
			}
			w.Fields = fields
		case model.OpDelete:
		default:
			return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidInput, w.Op)
		}
		if w.Op != model.OpSet && w.ID == "" {
			return nil, fmt.Errorf("%w: %s needs an id", ErrInvalidInput, w.Op)
		}
		prepared[i] = w
	}

	ids, err := s.Repo.Commit(ctx, userID, prepared, s.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	touched := map[string]bool{}
	for _, w := range prepared {
		metrics.DocumentWrites.WithLabelValues(w.Collection, string(w.Op)).Inc()
		touched[w.Collection] = true
	}
	for collection := range touched {
		s.Hub.Publish(userID, collection)
	}
	return ids, nil
}

// List runs q against the caller's own documents.
func (s *DocumentService) List(ctx context.Context, userID string, q model.Query) ([]model.Document, error) {
	if err := s.Authorize(userID, q); err != nil {
		return nil, err
	}
	docs, err := s.Repo.List(ctx, q.Collection, userID)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

// Snapshot returns the whole feed unfiltered; the hub applies each subscriber's query.
func (s *DocumentService) Snapshot(ctx context.Context, ownerID, collection string) ([]model.Document, error) {
	return s.Repo.List(ctx, collection, ownerID)
}

// Authorize rejects queries on unknown collections or on another user's documents.
func (s *DocumentService) Authorize(userID string, q model.Query) error {
	if err := s.checkCollection(q.Collection); err != nil {
		return err
	}
	if v, ok := q.FilterValue(OwnerField); ok && fmt.Sprint(v) != userID {
		return ErrForbidden
	}
	return nil
}

func (s *DocumentService) checkCollection(collection string) error {
	if !s.collections[collection] {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return nil
}

// ownFields validates the owner field and stamps it on inserts.
func (s *DocumentService) ownFields(userID string, fields map[string]any, stamp bool) (map[string]any, error) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidInput)
		}
		out[k] = v
	}
	if v, ok := out[OwnerField]; ok {
		if owner, _ := v.(string); owner != userID {
			return nil, ErrForbidden
		}
	} else if stamp {
		out[OwnerField] = userID
	}
	return out, nil
}

func (s *DocumentService) committed(userID, collection string, op model.WriteOp) {
	metrics.DocumentWrites.WithLabelValues(collection, string(op)).Inc()
	s.Hub.Publish(userID, collection)
}
