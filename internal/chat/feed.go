package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/realtime"
)

// Feed is the ordered message list of one open conversation
type Feed struct {
	store        Store
	changes      ChangeFeed
	reader       *ReadSync
	ids          *IDGenerator
	now          func() time.Time
	pollInterval time.Duration

	self          models.Session
	counterpartID string
	key           models.ConversationKey

	mu       sync.Mutex
	entries  []entry
	onUpdate func([]models.Message)
}

// Key returns the conversation key of the feed
func (f *Feed) Key() models.ConversationKey {
	return f.key
}

// OnUpdate registers fn to receive the ordered messages after every change
func (f *Feed) OnUpdate(fn func([]models.Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

// Messages returns the current ordered messages
func (f *Feed) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return messagesOf(f.entries)
}

// State returns the delivery state of the entry with the given identity
func (f *Feed) State(id int64) (EntryState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := lo.Find(f.entries, func(e entry) bool { return e.msg.ID == id })
	return e.state, ok
}

// LoadInitial fetches the conversation history. On error the feed keeps
// what it had and the next poll retries.
func (f *Feed) LoadInitial(ctx context.Context) ([]models.Message, error) {
	return f.fetch(ctx, "initial load")
}

// Poll re-fetches the whole conversation and reconciles it with the feed
func (f *Feed) Poll(ctx context.Context) ([]models.Message, error) {
	return f.fetch(ctx, "poll")
}

func (f *Feed) fetch(ctx context.Context, reason string) ([]models.Message, error) {
	changed, err := f.load(ctx, reason)
	if changed {
		f.publish()
	}
	return f.Messages(), err
}

func (f *Feed) load(ctx context.Context, reason string) (bool, error) {
	snapshot, err := f.store.ListConversation(ctx, f.key)
	if err != nil {
		log.Warn("Conversation %s/%s %s failed: %v", f.key.ClientID, f.key.ProviderID, reason, err)
		return false, err
	}
	return f.merge(snapshot), nil
}

// AppendOptimistic adds a pending message from the session user before it
// is written to the backend
func (f *Feed) AppendOptimistic(body string) (models.Message, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	msg := models.Message{
		ID:         f.ids.Next(),
		ClientID:   f.key.ClientID,
		ProviderID: f.key.ProviderID,
		Text:       text,
		SentAt:     f.now().UTC(),
		SentBy:     f.self.Role,
		Read:       false,
	}

	f.mu.Lock()
	f.entries = append(f.entries, entry{msg: msg, state: StatePending})
	sortEntries(f.entries)
	f.mu.Unlock()

	f.publish()
	return msg, nil
}

// maxSendAttempts bounds how often a send is re-keyed after its identity
// turned out to be taken by another message
const maxSendAttempts = 5

// ConfirmSend writes a message created by AppendOptimistic and returns it as
// stored. When the identity already belongs to a different message the entry
// gets a fresh identity and the write is retried. When the write fails the
// entry is dropped from the feed and ErrSendFailed is returned.
func (f *Feed) ConfirmSend(ctx context.Context, msg models.Message) (models.Message, error) {
	var err error
	rekeyed := false
	for attempt := 1; ; attempt++ {
		err = f.store.InsertMessage(ctx, msg)
		if !errors.Is(err, database.ErrDuplicateMessage) {
			break
		}

		stored, getErr := f.store.GetMessage(ctx, msg.ID)
		if getErr == nil && sameSend(stored, msg) {
			// Already stored by an earlier attempt
			err = nil
			break
		}
		if getErr != nil && !errors.Is(getErr, database.ErrMessageNotFound) {
			err = getErr
			break
		}
		if attempt == maxSendAttempts {
			break
		}
		if getErr == nil {
			msg = f.rekey(msg)
			rekeyed = true
		}
	}

	f.mu.Lock()
	if err == nil {
		f.setState(msg.ID, StateConfirmed)
		f.mu.Unlock()
		if rekeyed {
			f.publish()
		}
		return msg, nil
	}

	f.setState(msg.ID, StateFailed)
	f.entries = lo.Reject(f.entries, func(e entry, _ int) bool { return e.state == StateFailed })
	f.mu.Unlock()

	log.Error("Failed to send message %d: %v", msg.ID, err)
	f.publish()
	return msg, fmt.Errorf("%w: %v", ErrSendFailed, err)
}

// Send appends optimistically and confirms
func (f *Feed) Send(ctx context.Context, body string) (models.Message, error) {
	msg, err := f.AppendOptimistic(body)
	if err != nil {
		return msg, err
	}
	return f.ConfirmSend(ctx, msg)
}

// rekey moves a pending entry to a fresh identity
func (f *Feed) rekey(msg models.Message) models.Message {
	old := msg.ID
	msg.ID = f.ids.Next()

	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].msg.ID == old {
			f.entries[i].msg.ID = msg.ID
			break
		}
	}
	f.mu.Unlock()

	log.Warn("Message id %d is taken by another message, retrying as %d", old, msg.ID)
	return msg
}

func sameSend(a, b models.Message) bool {
	return a.Key() == b.Key() && a.SentBy == b.SentBy && a.Text == b.Text
}

// MergeIncoming adds a pushed message from the counterpart. Messages of other
// conversations or written by the session user are ignored. Merging the same
// identity twice leaves the feed unchanged.
func (f *Feed) MergeIncoming(ctx context.Context, msg models.Message) []models.Message {
	if msg.Key() != f.key || msg.SentBy == f.self.Role {
		return f.Messages()
	}

	changed := f.merge([]models.Message{msg})
	if read, _ := f.markRead(ctx); read {
		changed = true
	}
	if changed {
		f.publish()
	}
	return f.Messages()
}

// MarkRead marks the counterpart's messages read in the backend and in the
// feed. Observers are notified when an entry changed.
func (f *Feed) MarkRead(ctx context.Context) error {
	changed, err := f.markRead(ctx)
	if changed {
		f.publish()
	}
	return err
}

// Open loads the history and marks the counterpart's messages read. The
// observer always receives the resulting snapshot, even when it is empty.
func (f *Feed) Open(ctx context.Context) ([]models.Message, error) {
	_, err := f.load(ctx, "initial load")
	f.markRead(ctx)
	f.publish()
	return f.Messages(), err
}

// sync re-fetches after a notification that only named the new row
func (f *Feed) sync(ctx context.Context) {
	changed, err := f.load(ctx, "sync")
	if err != nil {
		return
	}
	if read, _ := f.markRead(ctx); read {
		changed = true
	}
	if changed {
		f.publish()
	}
}

// Run keeps the feed in sync until ctx is done: pushed inserts are merged as
// they arrive and the whole conversation is polled every poll interval.
func (f *Feed) Run(ctx context.Context) error {
	var changes <-chan realtime.Change
	if f.changes != nil {
		ch, unsubscribe := f.changes.Subscribe(realtime.Inserts(messageTable))
		defer unsubscribe()
		changes = ch
	}

	f.Open(ctx)

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if c.Op == realtime.OpResync {
				f.Poll(ctx)
				continue
			}
			msg, err := c.Message()
			if err != nil {
				log.Warn("Ignoring change: %v", err)
				continue
			}
			if c.Complete() {
				f.MergeIncoming(ctx, msg)
			} else if msg.Key() == f.key && msg.SentBy != f.self.Role {
				f.sync(ctx)
			}
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

func (f *Feed) merge(incoming []models.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed bool
	f.entries, changed = reconcile(f.entries, incoming)
	return changed
}

func (f *Feed) publish() {
	f.mu.Lock()
	snapshot, notify := messagesOf(f.entries), f.onUpdate
	f.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// markRead marks the counterpart's messages read remotely and, on success,
// locally. It reports whether any local entry changed.
func (f *Feed) markRead(ctx context.Context) (bool, error) {
	if f.reader == nil {
		return false, nil
	}
	if err := f.reader.MarkRead(ctx, f.self, f.counterpartID); err != nil {
		return false, err
	}

	counterpart := f.self.Role.Counterpart()
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for i := range f.entries {
		if f.entries[i].msg.SentBy == counterpart && !f.entries[i].msg.Read {
			f.entries[i].msg.Read = true
			changed = true
		}
	}
	return changed, nil
}

// setState must be called with f.mu held
func (f *Feed) setState(id int64, state EntryState) {
	for i := range f.entries {
		if f.entries[i].msg.ID == id {
			f.entries[i].state = state
			return
		}
	}
}
