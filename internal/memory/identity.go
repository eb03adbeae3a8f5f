package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"mypeeps/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
)

// Identity is an in-process identity provider. Accounts live for the
// lifetime of the value.
type Identity struct {
	mu        sync.Mutex
	accounts  map[string]account
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int
}

type account struct {
	uid      string
	password string
}

func NewIdentity() *Identity {
	return &Identity{
		accounts:  make(map[string]account),
		listeners: make(map[int]func(*domain.Identity)),
	}
}

// CreateAccount registers and signs in, like the hosted providers do.
func (p *Identity) CreateAccount(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.ToLower(email)
	if len(password) < 6 {
		return ErrWeakPassword
	}
	p.mu.Lock()
	if _, ok := p.accounts[email]; ok {
		p.mu.Unlock()
		return ErrEmailExists
	}
	acct := account{uid: uuid.NewString(), password: password}
	p.accounts[email] = acct
	p.mu.Unlock()

	p.set(&domain.Identity{UID: acct.uid, Email: email})
	return nil
}

func (p *Identity) SignIn(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.ToLower(email)
	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok || acct.password != password {
		return ErrInvalidCredentials
	}
	p.set(&domain.Identity{UID: acct.uid, Email: email})
	return nil
}

func (p *Identity) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.set(nil)
	return nil
}

// OnAuthStateChanged reports the current state immediately and then every
// change.
func (p *Identity) OnAuthStateChanged(fn func(*domain.Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	cur := p.current
	p.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Identity) set(id *domain.Identity) {
	p.mu.Lock()
	p.current = id
	fns := make([]func(*domain.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}
