package realtime

import (
	"context"
	"sync"

	"github.com/consertja/consertja/internal/logger"
)

var log = logger.New("realtime")

const subscriberBuffer = 64

// Source feeds changes into a broker until ctx is done
type Source interface {
	Listen(ctx context.Context, publish func(Change)) error
}

type subscriber struct {
	filter Filter
	send   chan Change
}

// Broker fans out changes from one source to any number of subscribers
type Broker struct {
	subscribers map[uint64]*subscriber
	next        uint64
	mutex       sync.Mutex
}

// NewBroker creates a new broker
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[uint64]*subscriber)}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(filter Filter) (<-chan Change, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{filter: filter, send: make(chan Change, subscriberBuffer)}
	b.subscribers[id] = sub
	log.Debug("Subscriber %d registered", id)

	var once sync.Once
	return sub.send, func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()
			if _, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub.send)
				log.Debug("Subscriber %d removed", id)
			}
		})
	}
}

// Publish delivers c to every matching subscriber without blocking. A
// subscriber whose buffer is full misses the change; the poll fallback
// covers it.
func (b *Broker) Publish(c Change) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for id, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter(c) {
			continue
		}
		select {
		case sub.send <- c:
		default:
			log.Warn("Subscriber %d is full, dropping %s on %s", id, c.Op, c.Table)
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Broker) Subscribers() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscribers)
}

// Run pumps src into the broker until ctx is done
func (b *Broker) Run(ctx context.Context, src Source) error {
	return src.Listen(ctx, b.Publish)
}
