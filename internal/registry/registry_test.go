package registry

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"mypeeps/internal/document/model"
	"mypeeps/internal/domain"
	"mypeeps/internal/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store   *memory.Store
	persons *Persons
	groups  *Groups
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	tick := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	store := memory.NewStore()
	opts = append([]Option{WithClock(clock)}, opts...)
	groups := NewGroups(store, opts...)
	persons := NewPersons(store, groups, opts...)
	require.NoError(t, groups.Start("u1"))
	require.NoError(t, persons.Start("u1"))
	t.Cleanup(func() {
		persons.Stop()
		groups.Stop()
	})
	return &fixture{store: store, persons: persons, groups: groups}
}

func (f *fixture) person(t *testing.T, name string) string {
	t.Helper()
	id, err := f.persons.Create(context.Background(), name, "", "")
	require.NoError(t, err)
	return id
}

func (f *fixture) group(t *testing.T, title string, members ...string) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.groups.Create(ctx, title)
	require.NoError(t, err)
	if len(members) > 0 {
		require.NoError(t, f.store.Update(ctx, domain.GroupsCollection, id, map[string]any{domain.FieldPersonIDs: members}))
	}
	return id
}

func (f *fixture) members(t *testing.T, groupID string) []string {
	t.Helper()
	g, ok := f.groups.Get(groupID)
	require.True(t, ok)
	ids := append([]string(nil), g.PersonIDs...)
	sort.Strings(ids)
	return ids
}

func writtenGroups(writes []model.Write) []string {
	var ids []string
	for _, w := range writes {
		if w.Collection == domain.GroupsCollection && w.Op == model.OpUpdate {
			ids = append(ids, w.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestCreatePersonOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	<-f.persons.Synced()

	older := f.person(t, "Ben")
	newer := f.person(t, "  Ana  ")

	list := f.persons.List()
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].ID)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, "u1", list[0].UID)
	assert.Equal(t, older, list[1].ID)
	assert.Greater(t, list[0].CreatedAt, list[1].CreatedAt)
}

func TestBlankNamesAreNoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"", "   "} {
		_, err := f.persons.Create(ctx, name, "notes", "")
		assert.ErrorIs(t, err, ErrBlankName)
	}
	_, err := f.groups.Create(ctx, " \t")
	assert.ErrorIs(t, err, ErrBlankTitle)

	assert.Empty(t, f.persons.List())
	assert.Empty(t, f.store.Writes())
}

func TestWritesNeedSession(t *testing.T) {
	store := memory.NewStore()
	groups := NewGroups(store)
	persons := NewPersons(store, groups)

	_, err := persons.Create(context.Background(), "Ana", "", "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = groups.Create(context.Background(), "Friends")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUpdatePersonKeepsIdentityFields(t *testing.T) {
	f := newFixture(t)
	id, err := f.persons.Create(context.Background(), "Ana", "old", "https://img/a.png")
	require.NoError(t, err)
	before, _ := f.persons.Get(id)

	require.NoError(t, f.persons.Update(context.Background(), id, " Ana B ", "new", "https://img/a.png"))
	assert.ErrorIs(t, f.persons.Update(context.Background(), id, "", "x", ""), ErrBlankName)

	after, ok := f.persons.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Ana B", after.Name)
	assert.Equal(t, "new", after.Notes)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Equal(t, before.UID, after.UID)
	assert.Equal(t, "https://img/a.png", after.ImageURL)
}

func TestDeletePersonCascades(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		t.Run(map[bool]string{false: "fanout", true: "atomic"}[atomic], func(t *testing.T) {
			f := newFixture(t, Atomic(atomic))
			ana, ben := f.person(t, "Ana"), f.person(t, "Ben")
			friends := f.group(t, "Friends", ana, ben)
			work := f.group(t, "Work", ana)
			other := f.group(t, "Other", ben)

			require.NoError(t, f.persons.Delete(context.Background(), ana))

			_, ok := f.persons.Get(ana)
			assert.False(t, ok)
			for _, g := range f.groups.List() {
				assert.False(t, g.Has(ana), g.Title)
			}
			assert.Equal(t, []string{ben}, f.members(t, friends))
			assert.Empty(t, f.members(t, work))
			assert.Equal(t, []string{ben}, f.members(t, other))
		})
	}
}

func TestDeletePersonPartialFailure(t *testing.T) {
	boom := errors.New("network down")

	t.Run("fanout leaves dangling id", func(t *testing.T) {
		f := newFixture(t)
		ana := f.person(t, "Ana")
		g := f.group(t, "Friends", ana)
		f.store.Fail = func(w model.Write) error {
			if w.Collection == domain.GroupsCollection {
				return boom
			}
			return nil
		}

		err := f.persons.Delete(context.Background(), ana)
		require.ErrorIs(t, err, boom)
		_, ok := f.persons.Get(ana)
		assert.False(t, ok)
		assert.Equal(t, []string{ana}, f.members(t, g))
		assert.Empty(t, domain.PeopleIn(f.persons.List(), f.members(t, g)))
	})

	t.Run("atomic keeps everything", func(t *testing.T) {
		f := newFixture(t, Atomic(true))
		ana := f.person(t, "Ana")
		g := f.group(t, "Friends", ana)
		f.store.Fail = func(w model.Write) error {
			if w.Collection == domain.GroupsCollection {
				return boom
			}
			return nil
		}

		require.ErrorIs(t, f.persons.Delete(context.Background(), ana), boom)
		_, ok := f.persons.Get(ana)
		assert.True(t, ok)
		assert.Equal(t, []string{ana}, f.members(t, g))
	})
}

func TestSetMembershipWritesOnlyChangedGroups(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ana")
	a := f.group(t, "A", p)
	b := f.group(t, "B")
	c := f.group(t, "C", p)
	untouched := f.group(t, "D")
	before := len(f.store.Writes())

	require.NoError(t, f.groups.SetMembership(context.Background(), p, []string{a, b}))

	want := []string{b, c}
	sort.Strings(want)
	assert.Equal(t, want, writtenGroups(f.store.Writes()[before:]))
	assert.Equal(t, []string{p}, f.members(t, a))
	assert.Equal(t, []string{p}, f.members(t, b))
	assert.Empty(t, f.members(t, c))
	assert.Empty(t, f.members(t, untouched))

	before = len(f.store.Writes())
	require.NoError(t, f.groups.SetMembership(context.Background(), p, []string{a, b}))
	assert.Len(t, f.store.Writes(), before, "no-op assignment issues no writes")
}

func TestSetMembershipFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ana")
	b := f.group(t, "B")
	c := f.group(t, "C", p)
	boom := errors.New("rejected")
	f.store.Fail = func(w model.Write) error {
		if w.ID == b {
			return boom
		}
		return nil
	}

	err := f.groups.SetMembership(context.Background(), p, []string{b})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.members(t, b))
	assert.Empty(t, f.members(t, c), "sibling update committed")
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ana, ben := f.person(t, "Ana"), f.person(t, "Ben")
	g := f.group(t, "Friends", ana, ben)

	ids, err := f.groups.RemoveMember(context.Background(), g, ana)
	require.NoError(t, err)
	assert.Equal(t, []string{ben}, ids)
	assert.Equal(t, []string{ben}, f.members(t, g))

	_, err = f.groups.RemoveMember(context.Background(), "missing", ana)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestStopClearsAndUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.person(t, "Ana")
	f.group(t, "Friends")

	f.persons.Stop()
	f.groups.Stop()

	assert.Empty(t, f.persons.List())
	assert.Empty(t, f.groups.List())
	assert.Zero(t, f.store.Subscribers())

	_, err := f.persons.Create(context.Background(), "Late", "", "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestSyncedFollowsSession(t *testing.T) {
	f := newFixture(t)
	assert.True(t, closed(f.persons.Synced()))

	f.persons.Stop()
	waiting := f.persons.Synced()
	assert.False(t, closed(waiting))

	require.NoError(t, f.persons.Start("u2"))
	assert.True(t, closed(waiting))
	assert.True(t, closed(f.persons.Synced()))
}

// capturingStore hands the test the snapshot callbacks.
type capturingStore struct {
	*memory.Store
	callbacks []func([]model.Document)
}

func (s *capturingStore) Subscribe(q model.Query, fn func([]model.Document)) (func(), error) {
	s.callbacks = append(s.callbacks, fn)
	return func() {}, nil
}

func TestStaleSnapshotsAreIgnored(t *testing.T) {
	store := &capturingStore{Store: memory.NewStore()}
	notified := 0
	groups := NewGroups(store, OnSnapshot(func() { notified++ }))

	require.NoError(t, groups.Start("u1"))
	first := store.callbacks[0]
	first([]model.Document{{ID: "g1", Fields: map[string]any{"title": "Old"}}})
	assert.Len(t, groups.List(), 1)

	groups.Stop()
	require.NoError(t, groups.Start("u2"))
	first([]model.Document{{ID: "g1", Fields: map[string]any{"title": "Old"}}})
	assert.Empty(t, groups.List())

	store.callbacks[1]([]model.Document{{ID: "g2", Fields: map[string]any{"title": "New"}}})
	require.Len(t, groups.List(), 1)
	assert.Equal(t, "New", groups.List()[0].Title)
	assert.Equal(t, 3, notified)

	select {
	case <-groups.Synced():
	default:
		t.Fatal("synced not closed after first snapshot")
	}
	groups.Stop()
}

func TestMembershipPlan(t *testing.T) {
	groups := []domain.Group{
		{ID: "a", PersonIDs: []string{"p"}},
		{ID: "b", PersonIDs: []string{}},
		{ID: "c", PersonIDs: []string{"x", "p"}},
	}
	writes := MembershipPlan(groups, "p", map[string]bool{"a": true, "b": true})
	require.Len(t, writes, 2)
	assert.Equal(t, "b", writes[0].ID)
	assert.Equal(t, []string{"p"}, writes[0].Fields[domain.FieldPersonIDs])
	assert.Equal(t, "c", writes[1].ID)
	assert.Equal(t, []string{"x"}, writes[1].Fields[domain.FieldPersonIDs])

	assert.Empty(t, MembershipPlan(groups, "p", map[string]bool{"a": true, "c": true}))
}
