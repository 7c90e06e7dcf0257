package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
)

var errBackend = errors.New("backend unavailable")

// memoryStore is an in-memory backend for the chat components
type memoryStore struct {
	mu       sync.Mutex
	messages []models.Message
	roles    map[string]models.Role
	names    map[models.Role]map[string]string

	roleLookups int
	failInsert  error
	failGet     error
	failList    error
	failMark    error
	failCount   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		roles: map[string]models.Role{},
		names: map[models.Role]map[string]string{},
	}
}

func (s *memoryStore) ListConversation(_ context.Context, key models.ConversationKey) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []models.Message
	for _, m := range s.messages {
		if m.Key() == key {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (s *memoryStore) InsertMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return s.failInsert
	}
	for _, m := range s.messages {
		if m.ID == msg.ID {
			return database.ErrDuplicateMessage
		}
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *memoryStore) GetMessage(_ context.Context, id int64) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return models.Message{}, s.failGet
	}
	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Message{}, database.ErrMessageNotFound
}

func (s *memoryStore) MarkConversationRead(_ context.Context, key models.ConversationKey, sentBy models.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		return 0, s.failMark
	}
	var n int64
	for i, m := range s.messages {
		if m.Key() == key && m.SentBy == sentBy && !m.Read {
			s.messages[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) CountUnread(_ context.Context, userID string, role models.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCount != nil {
		return 0, s.failCount
	}
	n := 0
	for _, m := range s.messages {
		if m.Key().Participant(role) == userID && m.SentBy == role.Counterpart() && !m.Read {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) LookupRole(_ context.Context, userID string) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleLookups++
	role, ok := s.roles[userID]
	if !ok {
		return "", database.ErrAccessNotFound
	}
	return role, nil
}

func (s *memoryStore) ListMessagesForUser(_ context.Context, userID string, role models.Role) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []models.Message
	for _, m := range s.messages {
		if m.Key().Participant(role) == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (s *memoryStore) CounterpartNames(_ context.Context, role models.Role, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := s.names[role][id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (s *memoryStore) add(msgs ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

func (s *memoryStore) get(id int64) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

func (s *memoryStore) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleLookups
}

// stepClock returns a clock that advances one second per call
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Second)
		return t
	}
}

var (
	client   = models.Session{UserID: "c1", Role: models.RoleClient}
	provider = models.Session{UserID: "p1", Role: models.RoleProvider}
	baseTime = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
)

func message(id int64, sentBy models.Role, offset time.Duration, text string) models.Message {
	return models.Message{
		ID:         id,
		ClientID:   client.UserID,
		ProviderID: provider.UserID,
		Text:       text,
		SentAt:     baseTime.Add(offset),
		SentBy:     sentBy,
	}
}
