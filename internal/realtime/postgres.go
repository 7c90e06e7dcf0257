package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresSource listens to the notifications published by the mensagem
// trigger
type PostgresSource struct {
	connStr  string
	channel  string
	minRetry time.Duration
	maxRetry time.Duration
	ping     time.Duration
}

// NewPostgresSource creates a source listening on channel
func NewPostgresSource(connStr, channel string) *PostgresSource {
	return &PostgresSource{
		connStr:  connStr,
		channel:  channel,
		minRetry: 10 * time.Second,
		maxRetry: time.Minute,
		ping:     90 * time.Second,
	}
}

// Listen blocks until ctx is done or the listener cannot be created
func (s *PostgresSource) Listen(ctx context.Context, publish func(Change)) error {
	listener := pq.NewListener(s.connStr, s.minRetry, s.maxRetry, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			log.Warn("Listener disconnected: %v", err)
		case pq.ListenerEventReconnected:
			log.Info("Listener reconnected to channel %s", s.channel)
		case pq.ListenerEventConnectionAttemptFailed:
			log.Error("Listener connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(s.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.channel, err)
	}
	log.Info("Listening for changes on channel %s", s.channel)

	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			// A nil notification means the connection was re-established
			if n == nil {
				publish(Change{Op: OpResync})
				continue
			}
			change, err := DecodeChange([]byte(n.Extra))
			if err != nil {
				log.Error("Dropping notification: %v", err)
				continue
			}
			publish(change)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				log.Warn("Listener ping failed: %v", err)
			}
		}
	}
}
