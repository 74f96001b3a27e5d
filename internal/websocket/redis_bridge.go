package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"relay-chat/internal/events"
	"relay-chat/internal/redis"

	"go.uber.org/zap"
)

// RedisBridge delivers frames published by any instance to the
// connections held by this one.
type RedisBridge struct {
	subscriber *redis.Subscriber
	hub        *Hub
	logger     *Logger
}

func NewRedisBridge(subscriber *redis.Subscriber, hub *Hub, logger *Logger) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub, logger: logger}
}

// Run blocks until ctx ends. ready is closed once the subscriptions are live.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	patterns := []string{
		redis.ConnectionChannelPrefix + "*",
		redis.GroupChannelPrefix + "*",
	}
	return b.subscriber.Subscribe(ctx, patterns, ready, b.deliver)
}

func (b *RedisBridge) deliver(channel string, payload []byte) {
	switch {
	case strings.HasPrefix(channel, redis.ConnectionChannelPrefix):
		handleID := strings.TrimPrefix(channel, redis.ConnectionChannelPrefix)
		// Every instance sees the message; only the holder has the handle.
		b.hub.SendToClient(handleID, payload)

	case strings.HasPrefix(channel, redis.GroupChannelPrefix):
		groupID := strings.TrimPrefix(channel, redis.GroupChannelPrefix)
		var relay events.Relay
		if err := json.Unmarshal(payload, &relay); err != nil {
			b.logger.Warn("malformed group relay", "", "", zap.String("channel", channel), zap.Error(err))
			return
		}
		b.hub.BroadcastGroup(groupID, relay.Except, relay.Frame)
	}
}
