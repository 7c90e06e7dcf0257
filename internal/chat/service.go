package chat

import (
	"time"

	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/session"
)

var log = logger.New("chat")

// DefaultPollInterval is how often an open conversation is re-fetched
const DefaultPollInterval = 20 * time.Second

// Service builds the chat components over one backend and change feed
type Service struct {
	store        Store
	changes      ChangeFeed
	ids          *IDGenerator
	pollInterval time.Duration
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithPollInterval overrides DefaultPollInterval
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock replaces time.Now for sent times and identities
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a chat service. changes may be nil, in which case open
// conversations rely on polling alone.
func NewService(store Store, changes ChangeFeed, opts ...Option) *Service {
	s := &Service{
		store:        store,
		changes:      changes,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ids = NewIDGenerator(s.now)
	return s
}

// Changes returns the change feed the service was built with
func (s *Service) Changes() ChangeFeed {
	return s.changes
}

// NewUnreadCounter creates a counter for the session
func (s *Service) NewUnreadCounter(sess *session.Context) *UnreadCounter {
	return &UnreadCounter{store: s.store, session: sess}
}

// NewReadSync creates a read-state synchronizer. counter may be nil.
func (s *Service) NewReadSync(counter *UnreadCounter) *ReadSync {
	return &ReadSync{store: s.store, counter: counter}
}

// OpenFeed creates the feed of the conversation between self and the
// counterpart. Nothing is fetched until LoadInitial, Open or Run.
func (s *Service) OpenFeed(self models.Session, counterpartID string, reader *ReadSync) (*Feed, error) {
	if !self.Authenticated() || !self.Role.Valid() {
		return nil, ErrNotAuthenticated
	}
	if counterpartID == "" {
		return nil, ErrNoCounterpart
	}

	return &Feed{
		store:         s.store,
		changes:       s.changes,
		reader:        reader,
		ids:           s.ids,
		now:           s.now,
		pollInterval:  s.pollInterval,
		self:          self,
		counterpartID: counterpartID,
		key:           models.KeyFor(self, counterpartID),
	}, nil
}
