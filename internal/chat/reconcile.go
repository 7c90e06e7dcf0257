package chat

import (
	"sort"

	"github.com/consertja/consertja/internal/models"
)

// EntryState tracks an outgoing message through its remote write
type EntryState int

const (
	StatePending EntryState = iota
	StateConfirmed
	StateFailed
)

func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type entry struct {
	msg   models.Message
	state EntryState
}

// reconcile merges backend messages into the known entries. Push deltas and
// poll snapshots both go through here.
//
// Entries are keyed by identity: a known identity takes the backend copy
// (read flag never goes back to false) and counts as confirmed, a new one is
// appended. Nothing is removed, so pending sends missing from a snapshot
// stay visible. The result is sorted by sent time; equal times keep their
// insertion order.
func reconcile(known []entry, incoming []models.Message) ([]entry, bool) {
	out := make([]entry, len(known), len(known)+len(incoming))
	copy(out, known)

	index := make(map[int64]int, len(out))
	for i, e := range out {
		index[e.msg.ID] = i
	}

	changed := false
	for _, m := range incoming {
		if i, ok := index[m.ID]; ok {
			cur := out[i]
			m.Read = m.Read || cur.msg.Read
			if cur.state != StateConfirmed || !sameMessage(cur.msg, m) {
				out[i] = entry{msg: m, state: StateConfirmed}
				changed = true
			}
			continue
		}
		index[m.ID] = len(out)
		out = append(out, entry{msg: m, state: StateConfirmed})
		changed = true
	}

	sortEntries(out)
	return out, changed
}

func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].msg.SentAt.Before(entries[j].msg.SentAt)
	})
}

func sameMessage(a, b models.Message) bool {
	return a.ID == b.ID &&
		a.ClientID == b.ClientID &&
		a.ProviderID == b.ProviderID &&
		a.Text == b.Text &&
		a.SentAt.Equal(b.SentAt) &&
		a.SentBy == b.SentBy &&
		a.Read == b.Read
}

func messagesOf(entries []entry) []models.Message {
	out := make([]models.Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}
