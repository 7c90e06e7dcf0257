package realtime

import (
	"context"
)

// Kinds of change source
const (
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
)

// FeedOptions selects where a broker gets its changes from
type FeedOptions struct {
	Kind          string
	DSN           string
	NotifyChannel string
	RedisURL      string
	RedisChannel  string
	// Relay forwards Postgres notifications to RedisChannel for instances
	// running with Kind redis
	Relay bool
}

// Start connects b to the configured source in the background until ctx is
// done. A source that fails is logged; subscribers then rely on polling.
func Start(ctx context.Context, b *Broker, o FeedOptions) error {
	if o.Kind == FeedRedis {
		client, err := NewRedisClient(o.RedisURL)
		if err != nil {
			return err
		}
		go func() {
			defer client.Close()
			if err := b.Run(ctx, NewRedisSource(client, o.RedisChannel)); err != nil && ctx.Err() == nil {
				log.Error("Redis change feed stopped: %v", err)
			}
		}()
		return nil
	}

	source := NewPostgresSource(o.DSN, o.NotifyChannel)
	publish := b.Publish
	if o.Relay {
		client, err := NewRedisClient(o.RedisURL)
		if err != nil {
			return err
		}
		publish = Relay(NewRedisPublisher(client, o.RedisChannel), b.Publish)
		log.Info("Relaying changes to redis channel %s", o.RedisChannel)
		go func() {
			<-ctx.Done()
			client.Close()
		}()
	}

	go func() {
		if err := source.Listen(ctx, publish); err != nil && ctx.Err() == nil {
			log.Error("Postgres change feed stopped: %v", err)
		}
	}()
	return nil
}
