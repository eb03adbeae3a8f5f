package session

import (
	"context"
	"strings"
	"sync"

	"mypeeps/internal/domain"
	"mypeeps/pkg/logger"
)

// Provider is the identity collaborator. State changes are reported only
// through OnAuthStateChanged; the call methods just report failure.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	OnAuthStateChanged(fn func(*domain.Identity)) (unsubscribe func())
}

// Manager holds the current identity and fans out transitions to listeners.
type Manager struct {
	provider Provider

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int
	stop      func()
}

func NewManager(p Provider) *Manager {
	m := &Manager{
		provider:  p,
		listeners: make(map[int]func(*domain.Identity)),
	}
	m.stop = p.OnAuthStateChanged(m.apply)
	return m
}

func (m *Manager) apply(id *domain.Identity) {
	m.mu.Lock()
	if sameIdentity(m.current, id) {
		m.mu.Unlock()
		return
	}
	if id != nil {
		cp := *id
		id = &cp
	}
	m.current = id
	fns := make([]func(*domain.Identity), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if id != nil {
		logger.Sugar.Debugf("session: signed in as %s", id.Email)
	} else {
		logger.Sugar.Debug("session: signed out")
	}
	for _, fn := range fns {
		fn(id)
	}
}

func sameIdentity(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Current returns a copy of the signed-in identity, or nil.
func (m *Manager) Current() *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

func (m *Manager) Register(ctx context.Context, email, password string) error {
	return m.provider.CreateAccount(ctx, strings.TrimSpace(email), password)
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.provider.SignIn(ctx, strings.TrimSpace(email), password)
}

func (m *Manager) Logout(ctx context.Context) error {
	return m.provider.SignOut(ctx)
}

// OnChange registers fn for every identity transition. Calls happen on the
// provider's goroutine.
func (m *Manager) OnChange(fn func(*domain.Identity)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Close detaches from the provider. Listeners stop receiving transitions.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.listeners = make(map[int]func(*domain.Identity))
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}
