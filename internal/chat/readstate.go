package chat

import (
	"context"

	"github.com/consertja/consertja/internal/models"
)

// ReadSync marks a counterpart's messages read and keeps the unread
// counter in step
type ReadSync struct {
	store   Store
	counter *UnreadCounter
}

// MarkRead sets lida on every unread message the counterpart sent in the
// conversation. Failures are logged and returned, not retried; the next
// open or incoming message tries again.
func (r *ReadSync) MarkRead(ctx context.Context, self models.Session, counterpartID string) error {
	if !self.Authenticated() {
		return ErrNotAuthenticated
	}
	if counterpartID == "" {
		return ErrNoCounterpart
	}

	key := models.KeyFor(self, counterpartID)
	affected, err := r.store.MarkConversationRead(ctx, key, self.Role.Counterpart())
	if err != nil {
		log.Error("Failed to mark %s/%s read: %v", key.ClientID, key.ProviderID, err)
		return err
	}
	if affected > 0 {
		log.Debug("Marked %d messages read in %s/%s", affected, key.ClientID, key.ProviderID)
	}

	if r.counter != nil {
		r.counter.Refresh(ctx)
	}
	return nil
}
