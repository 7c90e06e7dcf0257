package session

import (
	"sync"

	"github.com/consertja/consertja/internal/models"
)

// Store persists the session between runs
type Store interface {
	Load() (models.Session, error)
	Save(s models.Session) error
	Clear() error
}

// Context holds the identity components act on. It is passed to each
// component explicitly.
type Context struct {
	mu      sync.RWMutex
	current models.Session
	store   Store
}

// New creates a context for s. store may be nil when nothing is persisted.
func New(s models.Session, store Store) *Context {
	return &Context{current: s, store: store}
}

// Restore reads the persisted session
func Restore(store Store) (*Context, error) {
	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	return New(s, store), nil
}

// Current returns a copy of the session
func (c *Context) Current() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Login replaces the session and persists it
func (c *Context) Login(s models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Save(s); err != nil {
			return err
		}
	}
	c.current = s
	return nil
}

// Logout clears the session and its persisted copy
func (c *Context) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			return err
		}
	}
	c.current = models.Session{}
	return nil
}

// CacheRole records a role resolved from the backend
func (c *Context) CacheRole(role models.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Role = role
	if c.store != nil {
		return c.store.Save(c.current)
	}
	return nil
}
