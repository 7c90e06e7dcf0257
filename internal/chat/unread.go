package chat

import (
	"context"
	"sync"

	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/realtime"
	"github.com/consertja/consertja/internal/session"
)

// UnreadCounter keeps the number of messages addressed to the session user
// that are still unread
type UnreadCounter struct {
	store   Store
	session *session.Context

	mu       sync.Mutex
	count    int
	onChange func(int)
}

// OnChange registers fn to receive the count whenever it changes
func (u *UnreadCounter) OnChange(fn func(int)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onChange = fn
}

// Count returns the last computed value
func (u *UnreadCounter) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// Refresh recomputes the count from the backend. Without an identity the
// count is zero. On a backend error the previous value is kept.
func (u *UnreadCounter) Refresh(ctx context.Context) (int, error) {
	current := u.session.Current()
	if !current.Authenticated() {
		u.set(0)
		return 0, nil
	}

	role, err := u.role(ctx, current)
	if err != nil {
		log.Warn("Unread refresh for %s: role lookup failed: %v", current.UserID, err)
		return u.Count(), err
	}

	count, err := u.store.CountUnread(ctx, current.UserID, role)
	if err != nil {
		log.Warn("Unread refresh for %s failed: %v", current.UserID, err)
		return u.Count(), err
	}

	u.set(count)
	return count, nil
}

// Run refreshes once and then after every mensagem change until ctx is done
func (u *UnreadCounter) Run(ctx context.Context, changes ChangeFeed) error {
	var ch <-chan realtime.Change
	if changes != nil {
		sub, unsubscribe := changes.Subscribe(realtime.Table(messageTable))
		defer unsubscribe()
		ch = sub
	}

	u.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				ch = nil
				continue
			}
			u.Refresh(ctx)
		}
	}
}

func (u *UnreadCounter) role(ctx context.Context, current models.Session) (models.Role, error) {
	if current.Role.Valid() {
		return current.Role, nil
	}

	role, err := u.store.LookupRole(ctx, current.UserID)
	if err != nil {
		return "", err
	}
	if err := u.session.CacheRole(role); err != nil {
		log.Warn("Failed to persist role for %s: %v", current.UserID, err)
	}
	return role, nil
}

func (u *UnreadCounter) set(count int) {
	u.mu.Lock()
	changed := u.count != count
	u.count = count
	notify := u.onChange
	u.mu.Unlock()

	if changed && notify != nil {
		notify(count)
	}
}
