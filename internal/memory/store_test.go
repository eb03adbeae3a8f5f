package memory

import (
	"context"
	"errors"
	"testing"

	"mypeeps/internal/document/model"
	"mypeeps/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSubscriptionFollowsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	q := model.Query{Collection: "persons", Where: []model.Filter{model.Eq("uid", "u1")}, OrderBy: "createdAt", Desc: true}

	var snaps [][]model.Document
	stop, err := s.Subscribe(q, func(docs []model.Document) { snaps = append(snaps, docs) })
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Empty(t, snaps[0])

	_, err = s.Insert(ctx, "persons", map[string]any{"uid": "u1", "name": "Old", "createdAt": int64(1)})
	require.NoError(t, err)
	newID, err := s.Insert(ctx, "persons", map[string]any{"uid": "u1", "name": "New", "createdAt": int64(2)})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "persons", map[string]any{"uid": "u2", "name": "Other", "createdAt": int64(3)})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "groups", map[string]any{"uid": "u1", "title": "G"})
	require.NoError(t, err)

	require.Len(t, snaps, 4, "groups write must not notify a persons subscription")
	last := snaps[len(snaps)-1]
	require.Len(t, last, 2)
	assert.Equal(t, newID, last[0].ID)

	stop()
	stop()
	assert.Zero(t, s.Subscribers())
	require.NoError(t, s.Delete(ctx, "persons", newID))
	assert.Len(t, snaps, 4)
}

func TestStoreCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.Insert(ctx, "groups", map[string]any{"title": "A", "personIds": []string{"p1"}})
	require.NoError(t, err)

	_, err = s.Commit(ctx, []model.Write{
		{Op: model.OpUpdate, Collection: "groups", ID: id, Fields: map[string]any{"personIds": []string{}}},
		{Op: model.OpDelete, Collection: "persons", ID: "missing"},
	})
	require.ErrorIs(t, err, ErrNotFound)

	docs := s.List(model.Query{Collection: "groups"})
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"p1"}, docs[0].Fields["personIds"])
	assert.Len(t, s.Writes(), 1)
}

func TestStoreFailHook(t *testing.T) {
	s := NewStore()
	boom := errors.New("offline")
	s.Fail = func(w model.Write) error {
		if w.Collection == "persons" {
			return boom
		}
		return nil
	}
	_, err := s.Insert(context.Background(), "persons", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, boom)
	_, err = s.Insert(context.Background(), "groups", map[string]any{"title": "x"})
	assert.NoError(t, err)
}

func TestIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewIdentity()

	var seen []*domain.Identity
	stop := p.OnAuthStateChanged(func(id *domain.Identity) { seen = append(seen, id) })
	defer stop()
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	assert.ErrorIs(t, p.CreateAccount(ctx, "ana@example.com", "123"), ErrWeakPassword)
	require.NoError(t, p.CreateAccount(ctx, "Ana@Example.com", "hunter22"))
	require.Len(t, seen, 2)
	assert.Equal(t, "ana@example.com", seen[1].Email)

	assert.ErrorIs(t, p.CreateAccount(ctx, "ana@example.com", "hunter22"), ErrEmailExists)
	require.NoError(t, p.SignOut(ctx))
	assert.ErrorIs(t, p.SignIn(ctx, "ana@example.com", "wrong-pass"), ErrInvalidCredentials)
	require.NoError(t, p.SignIn(ctx, "ana@example.com", "hunter22"))
	require.Len(t, seen, 4)
	assert.Equal(t, seen[1].UID, seen[3].UID)
}
