package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client redis.UniversalClient
}

func NewSubscriber(client redis.UniversalClient) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe pattern-subscribes to patterns and invokes handler for every
// message until ctx is cancelled or the connection fails. ready, when not
// nil, is closed once Redis has confirmed the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, ready chan<- struct{}, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	for range patterns {
		if _, err := sub.Receive(ctx); err != nil {
			return err
		}
	}
	if ready != nil {
		close(ready)
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
