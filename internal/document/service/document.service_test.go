package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"mypeeps/config/database"
	"mypeeps/internal/document/model"
	"mypeeps/internal/document/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	feeds []string
}

func (n *recordingNotifier) Publish(ownerID, collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feeds = append(n.feeds, ownerID+"/"+collection)
}

func (n *recordingNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.feeds...)
}

func newService(t *testing.T) (*DocumentService, *recordingNotifier) {
	t.Helper()
	db, err := database.Open(context.Background(), database.SQLite, database.SQLiteDSN(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, database.SQLite))
	for _, u := range []string{"u1", "u2"} {
		_, err := db.Exec(`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, 'x', 0)`, u, u+"@example.com")
		require.NoError(t, err)
	}

	n := &recordingNotifier{}
	svc := NewDocumentService(repository.NewDocumentRepository(db, database.SQLite), n, []string{"persons", "groups"})
	clock := int64(1000)
	svc.now = func() time.Time {
		clock++
		return time.UnixMilli(clock)
	}
	return svc, n
}

func TestInsertStampsOwnerAndNotifies(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()

	id, err := svc.Insert(ctx, "u1", "persons", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	docs, err := svc.List(ctx, "u1", model.Query{Collection: "persons"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].Fields[OwnerField])
	assert.Equal(t, []string{"u1/persons"}, n.published())
}

func TestInsertRejectsForeignOwner(t *testing.T) {
	svc, n := newService(t)

	_, err := svc.Insert(context.Background(), "u1", "persons", map[string]any{"uid": "u2", "name": "Ana"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, n.published())
}

func TestUnknownCollection(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Insert(context.Background(), "u1", "secrets", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = svc.List(context.Background(), "u1", model.Query{Collection: "secrets"})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestListIsScopedAndOrdered(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i, name := range []string{"Ana", "Ben", "Cy"} {
		_, err := svc.Insert(ctx, "u1", "persons", map[string]any{"name": name, "createdAt": i})
		require.NoError(t, err)
	}
	_, err := svc.Insert(ctx, "u2", "persons", map[string]any{"name": "Other", "createdAt": 99})
	require.NoError(t, err)

	q := model.Query{Collection: "persons", Where: []model.Filter{model.Eq("uid", "u1")}, OrderBy: "createdAt", Desc: true}
	docs, err := svc.List(ctx, "u1", q)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "Cy", docs[0].Fields["name"])
	assert.Equal(t, "Ana", docs[2].Fields["name"])

	q.Where = []model.Filter{model.Eq("uid", "u2")}
	_, err = svc.List(ctx, "u1", q)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()

	id, err := svc.Insert(ctx, "u1", "groups", map[string]any{"title": "Friends", "personIds": []string{}})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, "u1", "groups", id, map[string]any{"personIds": []string{"p1"}}))
	assert.ErrorIs(t, svc.Update(ctx, "u2", "groups", id, map[string]any{"title": "x"}), ErrNotFound)
	assert.ErrorIs(t, svc.Update(ctx, "u1", "groups", id, map[string]any{"uid": "u2"}), ErrForbidden)
	assert.ErrorIs(t, svc.Update(ctx, "u1", "groups", id, nil), ErrInvalidInput)

	docs, err := svc.List(ctx, "u1", model.Query{Collection: "groups"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []any{"p1"}, docs[0].Fields["personIds"])
	assert.Equal(t, "Friends", docs[0].Fields["title"])

	assert.ErrorIs(t, svc.Delete(ctx, "u2", "groups", id), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", "groups", id))

	assert.Equal(t, []string{"u1/groups", "u1/groups", "u1/groups"}, n.published())
}

func TestCommitNotifiesEachFeedOnce(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()

	g1, err := svc.Insert(ctx, "u1", "groups", map[string]any{"title": "A", "personIds": []string{"p"}})
	require.NoError(t, err)
	g2, err := svc.Insert(ctx, "u1", "groups", map[string]any{"title": "B", "personIds": []string{"p"}})
	require.NoError(t, err)
	p, err := svc.Insert(ctx, "u1", "persons", map[string]any{"name": "P"})
	require.NoError(t, err)

	ids, err := svc.Commit(ctx, "u1", []model.Write{
		{Op: model.OpDelete, Collection: "persons", ID: p},
		{Op: model.OpUpdate, Collection: "groups", ID: g1, Fields: map[string]any{"personIds": []string{}}},
		{Op: model.OpUpdate, Collection: "groups", ID: g2, Fields: map[string]any{"personIds": []string{}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{p, g1, g2}, ids)

	published := n.published()[3:]
	assert.ElementsMatch(t, []string{"u1/persons", "u1/groups"}, published)
}

func TestCommitValidatesBeforeWriting(t *testing.T) {
	svc, n := newService(t)

	_, err := svc.Commit(context.Background(), "u1", []model.Write{
		{Op: model.OpSet, Collection: "persons", Fields: map[string]any{"name": "ok"}},
		{Op: model.OpUpdate, Collection: "persons"},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, n.published())

	docs, err := svc.List(context.Background(), "u1", model.Query{Collection: "persons"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
