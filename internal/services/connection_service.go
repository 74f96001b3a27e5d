package services

import (
	"context"

	"relay-chat/internal/redis"
	relay_errors "relay-chat/pkg/errors"

	"go.uber.org/zap"
)

// ConnectionService ties a live connection to the registry and presence.
type ConnectionService struct {
	registry ConnectionRegistry
	presence PresenceTracker
	opts     Options
}

func NewConnectionService(registry ConnectionRegistry, presence PresenceTracker, opts Options) *ConnectionService {
	return &ConnectionService{registry: registry, presence: presence, opts: opts.normalized()}
}

// Connect makes handleID the user's active connection and marks them online.
// A previous connection's entry is overwritten. If presence cannot be set the
// registration is rolled back so the handle is never left routable.
func (s *ConnectionService) Connect(ctx context.Context, userID, handleID string) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if err := s.registry.Register(callCtx, userID, handleID); err != nil {
		return relay_errors.Unavailable(err)
	}
	if err := s.presence.SetOnline(callCtx, userID); err != nil {
		s.rollback(ctx, userID, handleID)
		return relay_errors.Unavailable(err)
	}
	s.opts.Metrics.Connections.Inc()
	return nil
}

// rollback removes handleID from the registry on its own deadline.
func (s *ConnectionService) rollback(ctx context.Context, userID, handleID string) {
	rollbackCtx, cancel := s.opts.bounded(context.WithoutCancel(ctx))
	defer cancel()

	if _, err := s.registry.Unregister(rollbackCtx, userID, handleID); err != nil {
		s.opts.Logger.WithContext(ctx).Error("connection rollback failed",
			zap.String("user_id", userID),
			zap.String("client_id", handleID),
			zap.Error(err))
	}
}

// Heartbeat extends the registry entry while handleID still owns it and
// refreshes presence.
func (s *ConnectionService) Heartbeat(ctx context.Context, userID, handleID string) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	owner, err := s.registry.Refresh(callCtx, userID, handleID)
	if err != nil {
		return relay_errors.Unavailable(err)
	}
	if !owner {
		return nil
	}
	return relay_errors.Unavailable(s.presence.Heartbeat(callCtx, userID))
}

// Disconnect removes the registry entry only if handleID still owns it, so
// a late disconnect cannot evict a newer connection. Presence goes offline
// only in that case.
func (s *ConnectionService) Disconnect(ctx context.Context, userID, handleID string) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	s.opts.Metrics.Connections.Dec()

	removed, err := s.registry.Unregister(callCtx, userID, handleID)
	if err != nil {
		return relay_errors.Unavailable(err)
	}
	if !removed {
		s.opts.Logger.WithContext(ctx).Debug("connection superseded, keeping presence",
			zap.String("user_id", userID),
			zap.String("client_id", handleID))
		return nil
	}
	return relay_errors.Unavailable(s.presence.SetOffline(callCtx, userID))
}

// Presence reports the online state of each user.
func (s *ConnectionService) Presence(ctx context.Context, userIDs ...string) (map[string]*redis.PresenceStatus, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	statuses, err := s.presence.GetMultiplePresence(callCtx, userIDs)
	if err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	return statuses, nil
}
