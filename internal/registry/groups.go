package registry

import (
	"context"
	"fmt"
	"strings"

	"mypeeps/internal/document/model"
	"mypeeps/internal/domain"
	"mypeeps/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Groups is the live view of the signed-in user's groups. Order follows
// whatever the store delivers.
type Groups struct {
	store Store
	opts  options
	feed  *feed[domain.Group]
}

func NewGroups(store Store, opts ...Option) *Groups {
	o := buildOptions(opts)
	return &Groups{
		store: store,
		opts:  o,
		feed: &feed[domain.Group]{
			name:   domain.GroupsCollection,
			store:  store,
			decode: domain.GroupFromDocument,
			notify: o.notify,
		},
	}
}

func GroupsQuery(uid string) model.Query {
	return model.Query{
		Collection: domain.GroupsCollection,
		Where:      []model.Filter{model.Eq(domain.FieldOwner, uid)},
	}
}

func (g *Groups) Start(uid string) error {
	return g.feed.start(uid, GroupsQuery(uid))
}

// Stop tears down the subscription and clears the list.
func (g *Groups) Stop() { g.feed.halt(true) }

func (g *Groups) List() []domain.Group { return g.feed.list() }

// Synced is closed once the first snapshot after Start has been applied.
func (g *Groups) Synced() <-chan struct{} { return g.feed.syncedCh() }

func (g *Groups) Get(id string) (domain.Group, bool) {
	for _, group := range g.feed.list() {
		if group.ID == id {
			return group, true
		}
	}
	return domain.Group{}, false
}

func (g *Groups) Create(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrBlankTitle
	}
	uid, err := g.feed.owner()
	if err != nil {
		return "", err
	}
	id, err := g.store.Insert(ctx, domain.GroupsCollection, domain.Group{UID: uid, Title: title}.Fields())
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return id, nil
}

func (g *Groups) Delete(ctx context.Context, id string) error {
	if err := g.store.Delete(ctx, domain.GroupsCollection, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// SetMembership makes personID a member of exactly the groups in groupIDs,
// writing only groups whose membership changes.
func (g *Groups) SetMembership(ctx context.Context, personID string, groupIDs []string) error {
	desired := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		desired[id] = true
	}
	writes := MembershipPlan(g.feed.list(), personID, desired)
	return g.apply(ctx, writes)
}

// RemoveMember rewrites one group without personID and returns the
// membership list it wrote.
func (g *Groups) RemoveMember(ctx context.Context, groupID, personID string) ([]string, error) {
	group, ok := g.Get(groupID)
	if !ok {
		return nil, ErrGroupNotFound
	}
	ids := group.Without(personID)
	if err := g.store.Update(ctx, domain.GroupsCollection, groupID, membership(ids)); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}
	return ids, nil
}

// RemoveFromAll drops personID from every group that lists it.
func (g *Groups) RemoveFromAll(ctx context.Context, personID string) error {
	return g.apply(ctx, g.removalWrites(personID))
}

func (g *Groups) removalWrites(personID string) []model.Write {
	return MembershipPlan(g.feed.list(), personID, nil)
}

// apply issues writes as one batch in atomic mode, otherwise concurrently
// with no rollback. Every write runs to completion even if a sibling fails.
func (g *Groups) apply(ctx context.Context, writes []model.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if b, ok := g.opts.batcher(g.store); ok {
		if _, err := b.Commit(ctx, writes); err != nil {
			return fmt.Errorf("commit membership: %w", err)
		}
		return nil
	}

	var eg errgroup.Group
	for _, w := range writes {
		eg.Go(func() error {
			if err := g.store.Update(ctx, w.Collection, w.ID, w.Fields); err != nil {
				logger.Sugar.Warnf("registry: membership update of group %s failed: %v", w.ID, err)
				return fmt.Errorf("update group %s: %w", w.ID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// MembershipPlan returns one update per group whose membership of personID
// differs from desired.
func MembershipPlan(groups []domain.Group, personID string, desired map[string]bool) []model.Write {
	var writes []model.Write
	for _, group := range groups {
		has, want := group.Has(personID), desired[group.ID]
		switch {
		case want && !has:
			writes = append(writes, updateWrite(group.ID, group.With(personID)))
		case !want && has:
			writes = append(writes, updateWrite(group.ID, group.Without(personID)))
		}
	}
	return writes
}

func updateWrite(groupID string, ids []string) model.Write {
	return model.Write{Op: model.OpUpdate, Collection: domain.GroupsCollection, ID: groupID, Fields: membership(ids)}
}

func membership(ids []string) map[string]any {
	return map[string]any{domain.FieldPersonIDs: ids}
}
