package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	authModel "mypeeps/internal/auth/model"
	"mypeeps/internal/domain"
	"mypeeps/pkg/logger"
)

func (c *Client) CreateAccount(ctx context.Context, email, password string) error {
	return c.auth(ctx, "/api/auth/register", email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.auth(ctx, "/api/auth/login", email, password)
}

// SignOut forgets the token locally. Tokens are stateless on the server.
func (c *Client) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.setCredentials(Credentials{})
	return nil
}

// Restore loads persisted credentials and checks them against the server.
// Expired or revoked tokens are discarded.
func (c *Client) Restore(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	creds, err := c.tokens.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds.Token == "" {
		return nil
	}

	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	var me authModel.UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &me); err != nil {
		if IsUnauthorized(err) {
			logger.Sugar.Infof("Stored session for %s expired", creds.Email)
			c.setCredentials(Credentials{})
			return nil
		}
		c.mu.Lock()
		c.creds = Credentials{}
		c.mu.Unlock()
		return err
	}
	creds.UserID, creds.Email = me.ID, me.Email
	c.setCredentials(creds)
	return nil
}

// OnAuthStateChanged reports the current identity immediately and then
// every change, on the goroutine that caused it.
func (c *Client) OnAuthStateChanged(fn func(*domain.Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	cur := identityOf(c.creds)
	c.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Current returns the identity of the held token, or nil.
func (c *Client) Current() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return identityOf(c.creds)
}

func (c *Client) setCredentials(creds Credentials) {
	if c.tokens != nil {
		var err error
		if creds.Token == "" {
			err = c.tokens.Clear()
		} else {
			err = c.tokens.Save(creds)
		}
		if err != nil {
			logger.Sugar.Warnf("Could not persist session: %v", err)
		}
	}

	c.mu.Lock()
	c.creds = creds
	fns := make([]func(*domain.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	cur := identityOf(creds)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(cur)
	}
}

func identityOf(creds Credentials) *domain.Identity {
	if creds.Token == "" {
		return nil
	}
	return &domain.Identity{UID: creds.UserID, Email: creds.Email}
}
