package registry

import (
	"context"
	"fmt"
	"strings"

	"mypeeps/internal/document/model"
	"mypeeps/internal/domain"
)

// Persons is the live view of the signed-in user's people, newest first.
type Persons struct {
	store  Store
	groups *Groups
	opts   options
	feed   *feed[domain.Person]
}

// NewPersons needs the group registry for the delete cascade.
func NewPersons(store Store, groups *Groups, opts ...Option) *Persons {
	o := buildOptions(opts)
	return &Persons{
		store:  store,
		groups: groups,
		opts:   o,
		feed: &feed[domain.Person]{
			name:   domain.PersonsCollection,
			store:  store,
			decode: domain.PersonFromDocument,
			notify: o.notify,
		},
	}
}

// PersonsQuery selects uid's persons, newest first.
func PersonsQuery(uid string) model.Query {
	return model.Query{
		Collection: domain.PersonsCollection,
		Where:      []model.Filter{model.Eq(domain.FieldOwner, uid)},
		OrderBy:    domain.FieldCreatedAt,
		Desc:       true,
	}
}

func (p *Persons) Start(uid string) error {
	return p.feed.start(uid, PersonsQuery(uid))
}

// Stop tears down the subscription and clears the list.
func (p *Persons) Stop() { p.feed.halt(true) }

func (p *Persons) List() []domain.Person { return p.feed.list() }

// Synced is closed once the first snapshot after Start has been applied.
func (p *Persons) Synced() <-chan struct{} { return p.feed.syncedCh() }

func (p *Persons) Get(id string) (domain.Person, bool) {
	for _, person := range p.feed.list() {
		if person.ID == id {
			return person, true
		}
	}
	return domain.Person{}, false
}

func (p *Persons) Create(ctx context.Context, name, notes, photoURL string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrBlankName
	}
	uid, err := p.feed.owner()
	if err != nil {
		return "", err
	}
	person := domain.Person{
		UID:       uid,
		Name:      name,
		Notes:     strings.TrimSpace(notes),
		ImageURL:  photoURL,
		CreatedAt: p.opts.now().UnixMilli(),
	}
	id, err := p.store.Insert(ctx, domain.PersonsCollection, person.Fields())
	if err != nil {
		return "", fmt.Errorf("create person: %w", err)
	}
	return id, nil
}

// Update overwrites name, notes and photo. Owner and creation time are
// left alone.
func (p *Persons) Update(ctx context.Context, id, name, notes, photoURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}
	fields := map[string]any{
		domain.FieldName:     name,
		domain.FieldNotes:    strings.TrimSpace(notes),
		domain.FieldImageURL: photoURL,
	}
	if err := p.store.Update(ctx, domain.PersonsCollection, id, fields); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Delete removes the person and then every membership referencing it.
// Outside atomic mode a failed cascade leaves the person deleted.
func (p *Persons) Delete(ctx context.Context, id string) error {
	if b, ok := p.opts.batcher(p.store); ok {
		writes := append([]model.Write{{Op: model.OpDelete, Collection: domain.PersonsCollection, ID: id}}, p.groups.removalWrites(id)...)
		if _, err := b.Commit(ctx, writes); err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		return nil
	}

	if err := p.store.Delete(ctx, domain.PersonsCollection, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if err := p.groups.RemoveFromAll(ctx, id); err != nil {
		return fmt.Errorf("remove %s from groups: %w", id, err)
	}
	return nil
}
