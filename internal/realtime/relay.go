package realtime

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "taskboard:events"

// Relay carries event frames between server instances.
type Relay interface {
	Publish(ctx context.Context, frame []byte) error
	// Subscribe blocks, invoking handle for every frame, until ctx is done
	// or the subscription breaks. ready is called once the subscription is
	// confirmed.
	Subscribe(ctx context.Context, ready func(), handle func(frame []byte)) error
}

type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client, channel: relayChannel}
}

func (r *RedisRelay) Publish(ctx context.Context, frame []byte) error {
	return r.client.Publish(ctx, r.channel, frame).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, ready func(), handle func(frame []byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ready()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("relay subscription closed")
			}
			handle([]byte(msg.Payload))
		}
	}
}
