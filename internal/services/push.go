package services

import (
	"context"

	"relay-chat/internal/events"
)

// userPusher resolves a user's live connection through the registry and
// pushes one frame to it.
type userPusher struct {
	registry ConnectionRegistry
	pusher   Pusher
	opts     Options
}

// toUser reports whether the user had a registered connection and the push
// was handed off. A missing registry entry is not an error.
func (p userPusher) toUser(ctx context.Context, userID, eventType string, data interface{}) (bool, error) {
	callCtx, cancel := p.opts.bounded(ctx)
	defer cancel()

	handleID, found, err := p.registry.Lookup(callCtx, userID)
	if err != nil || !found {
		return false, err
	}

	frame, err := events.Encode(eventType, data)
	if err != nil {
		return false, err
	}
	if err := p.pusher.PushToConnection(callCtx, handleID, frame); err != nil {
		return false, err
	}
	return true, nil
}
