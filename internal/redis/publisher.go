package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Channel names shared by every instance.
const (
	ConnectionChannelPrefix = "channel:connection:"
	GroupChannelPrefix      = "channel:group:"
	PresenceChannelPrefix   = "channel:presence:"
)

func ConnectionChannel(handleID string) string {
	return ConnectionChannelPrefix + handleID
}

func GroupChannel(groupID string) string {
	return GroupChannelPrefix + groupID
}

func PresenceChannel(userID string) string {
	return PresenceChannelPrefix + userID
}

type Publisher struct {
	client redis.UniversalClient
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// PublishJSON marshals v and publishes it on channel.
func (p *Publisher) PublishJSON(ctx context.Context, channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, channel, data)
}
