package backbone

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teris-io/shortid"
)

const (
	eventsChannel = "marketchat:events"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// RedisBackbone fans events out over a shared redis pub/sub channel. Every
// process subscribes to the same channel and drops envelopes carrying its
// own origin id.
type RedisBackbone struct {
	log    *log.Logger
	client *redis.Client
	origin string
}

func NewRedisBackbone(logger *log.Logger, redisURL string) (*RedisBackbone, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	origin, err := shortid.Generate()
	if err != nil {
		origin = fmt.Sprintf("proc-%d", time.Now().UnixNano())
	}

	return &RedisBackbone{
		log:    logger,
		client: client,
		origin: origin,
	}, nil
}

func (b *RedisBackbone) Publish(ctx context.Context, env Envelope) error {
	env.Origin = b.origin

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

func (b *RedisBackbone) Start(ctx context.Context, h Handler) {
	go b.consume(ctx, h)
}

// consume subscribes and delivers remote envelopes until the context is
// cancelled. A lost subscription is retried with exponential backoff;
// events published while disconnected are gone.
func (b *RedisBackbone) consume(ctx context.Context, h Handler) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := b.client.Subscribe(ctx, eventsChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}

			b.log.Printf("backbone subscribe failed, retrying in %s: %v", backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		b.log.Printf("backbone subscribed to %q", eventsChannel)

		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Println("backbone: bad envelope:", err)
				continue
			}

			if env.Origin == b.origin {
				continue
			}

			h(env)
		}

		pubsub.Close()
	}
}

func (b *RedisBackbone) Close() error {
	return b.client.Close()
}
