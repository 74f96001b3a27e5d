package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"relay-chat/internal/events"
	"relay-chat/internal/redis"
)

// Dispatcher routes frames produced by the services to connections. A
// handle held by this instance is served from the hub; anything else goes
// through Redis pub/sub to whichever instance holds it.
type Dispatcher struct {
	hub       *Hub
	publisher *redis.Publisher
}

func NewDispatcher(hub *Hub, publisher *redis.Publisher) *Dispatcher {
	return &Dispatcher{hub: hub, publisher: publisher}
}

func (d *Dispatcher) PushToConnection(ctx context.Context, handleID string, frame []byte) error {
	if d.hub.SendToClient(handleID, frame) {
		return nil
	}
	if err := d.publisher.Publish(ctx, redis.ConnectionChannel(handleID), frame); err != nil {
		return fmt.Errorf("publish to connection %s: %w", handleID, err)
	}
	return nil
}

// BroadcastGroup publishes once; every instance, this one included,
// delivers to its own subscribers through the bridge.
func (d *Dispatcher) BroadcastGroup(ctx context.Context, groupID, exceptUserID string, frame []byte) error {
	relay := events.Relay{Except: exceptUserID, Frame: json.RawMessage(frame)}
	if err := d.publisher.PublishJSON(ctx, redis.GroupChannel(groupID), relay); err != nil {
		return fmt.Errorf("publish to group %s: %w", groupID, err)
	}
	return nil
}
