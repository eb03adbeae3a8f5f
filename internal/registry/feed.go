package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"mypeeps/internal/document/model"
	"mypeeps/pkg/logger"
)

var (
	ErrBlankName     = errors.New("name is required")
	ErrBlankTitle    = errors.New("title is required")
	ErrNoSession     = errors.New("no active session")
	ErrGroupNotFound = errors.New("group not found")
)

// Store is the document store collaborator.
type Store interface {
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(q model.Query, onSnapshot func([]model.Document)) (unsubscribe func(), err error)
}

// Batcher is implemented by stores that can commit several writes in one
// transaction.
type Batcher interface {
	Commit(ctx context.Context, writes []model.Write) ([]string, error)
}

type options struct {
	atomic bool
	now    func() time.Time
	notify func()
}

type Option func(*options)

// Atomic commits person delete with its cascade, and membership changes,
// as a single batch when the store is a Batcher.
func Atomic(on bool) Option {
	return func(o *options) { o.atomic = on }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// OnSnapshot is called after every applied snapshot and after Stop.
func OnSnapshot(fn func()) Option {
	return func(o *options) { o.notify = fn }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) batcher(store Store) (Batcher, bool) {
	if !o.atomic {
		return nil, false
	}
	b, ok := store.(Batcher)
	return b, ok
}

// feed owns one live subscription and the latest snapshot it delivered.
type feed[T any] struct {
	name   string
	store  Store
	decode func(model.Document) T
	notify func()

	mu     sync.Mutex
	uid    string
	items  []T
	gen    uint64
	stop   func()
	synced chan struct{}
	ready  bool
}

func (f *feed[T]) start(uid string, q model.Query) error {
	f.halt(false)

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.uid = uid
	if f.synced == nil {
		f.synced = make(chan struct{})
	}
	synced := f.synced
	f.mu.Unlock()

	stop, err := f.store.Subscribe(q, func(docs []model.Document) {
		items := make([]T, 0, len(docs))
		for _, d := range docs {
			items = append(items, f.decode(d))
		}
		f.mu.Lock()
		if f.gen != gen {
			f.mu.Unlock()
			logger.Sugar.Debugf("registry: dropped stale %s snapshot", f.name)
			return
		}
		f.items = items
		if !f.ready {
			f.ready = true
			close(synced)
		}
		f.mu.Unlock()
		if f.notify != nil {
			f.notify()
		}
	})
	if err != nil {
		f.mu.Lock()
		if f.gen == gen {
			f.uid = ""
		}
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	if f.gen != gen {
		// stopped while subscribing
		f.mu.Unlock()
		stop()
		return nil
	}
	f.stop = stop
	f.mu.Unlock()
	return nil
}

func (f *feed[T]) halt(notify bool) {
	f.mu.Lock()
	f.gen++
	stop := f.stop
	f.stop = nil
	f.uid = ""
	f.items = nil
	if f.ready {
		// the next session must deliver its own first snapshot
		f.synced = nil
		f.ready = false
	}
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
	if notify && f.notify != nil {
		f.notify()
	}
}

func (f *feed[T]) list() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

func (f *feed[T]) owner() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uid == "" {
		return "", ErrNoSession
	}
	return f.uid, nil
}

func (f *feed[T]) syncedCh() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.synced == nil {
		f.synced = make(chan struct{})
	}
	return f.synced
}
