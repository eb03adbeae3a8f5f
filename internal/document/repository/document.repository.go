package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mypeeps/config/database"
	"mypeeps/internal/document/model"
	"mypeeps/pkg/logger"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DocumentRepository struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewDocumentRepository(db *sql.DB, dialect database.Dialect) *DocumentRepository {
	return &DocumentRepository{DB: db, Dialect: dialect}
}

func (r *DocumentRepository) q(query string) string {
	return database.Rebind(r.Dialect, query)
}

func (r *DocumentRepository) Insert(ctx context.Context, doc *model.Document) error {
	if err := r.insert(ctx, r.DB, doc); err != nil {
		logger.Sugar.Errorf("Failed to create document in %s: %v", doc.Collection, err)
		return err
	}
	return nil
}

func (r *DocumentRepository) insert(ctx context.Context, db querier, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	raw, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, r.q(`INSERT INTO documents (id, collection, owner_id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		doc.ID, doc.Collection, doc.OwnerID, raw, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns ErrNotFound when the document does not exist or belongs to someone else.
func (r *DocumentRepository) Get(ctx context.Context, collection, id, ownerID string) (*model.Document, error) {
	return r.get(ctx, r.DB, collection, id, ownerID, false)
}

func (r *DocumentRepository) get(ctx context.Context, db querier, collection, id, ownerID string, forUpdate bool) (*model.Document, error) {
	query := `SELECT id, collection, owner_id, fields, created_at, updated_at FROM documents
		WHERE id = ? AND collection = ? AND owner_id = ?`
	if forUpdate && r.Dialect == database.Postgres {
		query += " FOR UPDATE"
	}
	doc, err := scanDocument(db.QueryRowContext(ctx, r.q(query), id, collection, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// List returns every document of the feed in insertion order.
func (r *DocumentRepository) List(ctx context.Context, collection, ownerID string) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id, collection, owner_id, fields, created_at, updated_at
		FROM documents WHERE collection = ? AND owner_id = ? ORDER BY created_at ASC, id ASC`), collection, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list %s for user %s: %v", collection, ownerID, err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Merge overwrites the given top-level fields and keeps the rest.
func (r *DocumentRepository) Merge(ctx context.Context, collection, id, ownerID string, fields map[string]any, now int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := r.merge(ctx, tx, collection, id, ownerID, fields, now); err != nil {
		rollback(tx)
		if !errors.Is(err, ErrNotFound) {
			logger.Sugar.Errorf("Failed to update document %s: %v", id, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

func (r *DocumentRepository) merge(ctx context.Context, db querier, collection, id, ownerID string, fields map[string]any, now int64) error {
	doc, err := r.get(ctx, db, collection, id, ownerID, true)
	if err != nil {
		return err
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}
	raw, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, r.q(`UPDATE documents SET fields = ?, updated_at = ? WHERE id = ? AND owner_id = ?`),
		raw, now, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection, id, ownerID string) error {
	if err := r.delete(ctx, r.DB, collection, id, ownerID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		}
		return err
	}
	return nil
}

func (r *DocumentRepository) delete(ctx context.Context, db querier, collection, id, ownerID string) error {
	result, err := db.ExecContext(ctx, r.q(`DELETE FROM documents WHERE id = ? AND collection = ? AND owner_id = ?`),
		id, collection, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit applies all writes in a single transaction and returns the ids of
// the written documents in order.
func (r *DocumentRepository) Commit(ctx context.Context, ownerID string, writes []model.Write, now int64) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ids := make([]string, 0, len(writes))
	for i, w := range writes {
		switch w.Op {
		case model.OpSet:
			doc := &model.Document{
				ID: w.ID, Collection: w.Collection, OwnerID: ownerID,
				Fields: w.Fields, CreatedAt: now, UpdatedAt: now,
			}
			err = r.insert(ctx, tx, doc)
			w.ID = doc.ID
		case model.OpUpdate:
			err = r.merge(ctx, tx, w.Collection, w.ID, ownerID, w.Fields, now)
		case model.OpDelete:
			err = r.delete(ctx, tx, w.Collection, w.ID, ownerID)
		default:
			err = fmt.Errorf("unknown op %q", w.Op)
		}
		if err != nil {
			rollback(tx)
			return nil, fmt.Errorf("write %d (%s %s/%s): %w", i, w.Op, w.Collection, w.ID, err)
		}
		ids = append(ids, w.ID)
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit batch for user %s: %v", ownerID, err)
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var doc model.Document
	var raw []byte
	if err := s.Scan(&doc.ID, &doc.Collection, &doc.OwnerID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Fields = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Fields); err != nil {
			return nil, fmt.Errorf("corrupt fields for %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(raw), nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Sugar.Errorf("Failed to roll back transaction: %v", err)
	}
}
