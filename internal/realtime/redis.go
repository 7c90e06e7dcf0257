package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url and returns a client
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisSource receives changes relayed by another instance over a Redis
// channel, so only one instance holds the Postgres listener
type RedisSource struct {
	client  *redis.Client
	channel string
}

func NewRedisSource(client *redis.Client, channel string) *RedisSource {
	return &RedisSource{client: client, channel: channel}
}

// Listen blocks until ctx is done
func (s *RedisSource) Listen(ctx context.Context, publish func(Change)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	log.Info("Subscribed to redis channel %s", s.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription on %s closed", s.channel)
			}
			change, err := DecodeChange([]byte(msg.Payload))
			if err != nil {
				log.Error("Dropping relayed change: %v", err)
				continue
			}
			publish(change)
		}
	}
}

// Publisher sends changes somewhere outside the process
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// RedisPublisher relays changes to a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Relay returns a publish function that hands each change to next and also
// forwards it through pub
func Relay(pub Publisher, next func(Change)) func(Change) {
	return func(c Change) {
		next(c)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, c); err != nil {
			log.Error("Failed to relay %s on %s: %v", c.Op, c.Table, err)
		}
	}
}
