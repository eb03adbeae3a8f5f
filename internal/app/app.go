package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mypeeps/internal/domain"
	"mypeeps/internal/media"
	"mypeeps/internal/registry"
	"mypeeps/internal/session"
	"mypeeps/internal/view"
	"mypeeps/pkg/logger"
)

var (
	ErrNoUploader    = errors.New("photo uploads are not configured")
	ErrNoForm        = errors.New("no photo form is open")
	ErrUploadPending = errors.New("a photo upload is still in progress")
	ErrUnknownItem   = errors.New("item no longer exists")
)

type Config struct {
	Identity session.Provider
	Store    registry.Store
	// Uploader may be nil, in which case photo uploads fail with ErrNoUploader.
	Uploader media.Uploader
	// Atomic turns person delete and membership changes into single
	// batches when Store supports it.
	Atomic bool
}

// App is the client: session, registries and view state behind one lock.
// Registries and collaborators are always called without holding it.
type App struct {
	session  *session.Manager
	persons  *registry.Persons
	groups   *registry.Groups
	uploader media.Uploader

	mu        sync.Mutex
	state     view.State
	identity  *domain.Identity
	listeners map[int]func()
	nextID    int

	unsubscribe func()
}

func New(cfg Config) *App {
	a := &App{
		uploader:  cfg.Uploader,
		state:     view.New(),
		listeners: make(map[int]func()),
	}
	opts := []registry.Option{registry.Atomic(cfg.Atomic), registry.OnSnapshot(a.changed)}
	a.groups = registry.NewGroups(cfg.Store, opts...)
	a.persons = registry.NewPersons(cfg.Store, a.groups, opts...)

	a.session = session.NewManager(cfg.Identity)
	a.unsubscribe = a.session.OnChange(a.onSession)
	if id := a.session.Current(); id != nil {
		a.onSession(id)
	}
	return a
}

func (a *App) onSession(id *domain.Identity) {
	if id == nil {
		a.persons.Stop()
		a.groups.Stop()
		a.mu.Lock()
		a.identity = nil
		a.state.Reset()
		a.mu.Unlock()
		a.changed()
		return
	}

	var notice string
	if err := a.groups.Start(id.UID); err != nil {
		notice = fmt.Sprintf("Could not load groups: %v", err)
	}
	if err := a.persons.Start(id.UID); err != nil {
		notice = fmt.Sprintf("Could not load people: %v", err)
	}
	if notice != "" {
		logger.Sugar.Warn(notice)
	}
	a.mu.Lock()
	a.identity = id
	a.state.Reset()
	a.state.Notice = notice
	a.mu.Unlock()
	a.changed()
}

// Subscribe registers a re-render callback. It runs on whichever goroutine
// caused the change.
func (a *App) Subscribe(fn func()) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *App) changed() {
	a.mu.Lock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// update mutates view state under the lock and then notifies.
func (a *App) update(fn func(s *view.State)) {
	a.mu.Lock()
	fn(&a.state)
	a.mu.Unlock()
	a.changed()
}

// Edit applies a draft change from the UI.
func (a *App) Edit(fn func(s *view.State)) { a.update(fn) }

func (a *App) State() view.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

func (a *App) Identity() *domain.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity == nil {
		return nil
	}
	id := *a.identity
	return &id
}

func (a *App) Persons() []domain.Person { return a.persons.List() }

func (a *App) Groups() []domain.Group { return a.groups.List() }

// Members joins a group's membership with the person list. Dangling ids
// are not shown.
func (a *App) Members(g domain.Group) []domain.Person {
	return domain.PeopleIn(a.persons.List(), g.PersonIDs)
}

// WaitSynced blocks until both registries applied their first snapshot.
func (a *App) WaitSynced(ctx context.Context) error {
	for _, ch := range []<-chan struct{}{a.persons.Synced(), a.groups.Synced()} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close detaches from the identity provider and ends all subscriptions.
func (a *App) Close() {
	a.unsubscribe()
	a.session.Close()
	a.persons.Stop()
	a.groups.Stop()
}

// fail records err as the user-visible notice and returns it.
func (a *App) fail(err error) error {
	logger.Sugar.Warnf("app: %v", err)
	a.update(func(s *view.State) { s.Notice = err.Error() })
	return err
}
