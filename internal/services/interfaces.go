package services

import (
	"context"
	"time"

	"relay-chat/internal/domain/group"
	"relay-chat/internal/domain/notification"
	"relay-chat/internal/metrics"
	"relay-chat/internal/redis"
	"relay-chat/pkg/logger"
)

// Pusher delivers encoded frames to live connections, wherever they are held.
type Pusher interface {
	PushToConnection(ctx context.Context, handleID string, frame []byte) error
	BroadcastGroup(ctx context.Context, groupID, exceptUserID string, frame []byte) error
}

type ConnectionRegistry interface {
	Register(ctx context.Context, userID, handleID string) error
	Lookup(ctx context.Context, userID string) (string, bool, error)
	Unregister(ctx context.Context, userID, handleID string) (bool, error)
	Refresh(ctx context.Context, userID, handleID string) (bool, error)
}

type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Heartbeat(ctx context.Context, userID string) error
	GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]*redis.PresenceStatus, error)
}

type NotificationQueue interface {
	Enqueue(ctx context.Context, userID string, n notification.Notification) error
	List(ctx context.Context, userID string) ([]notification.Notification, error)
	Drain(ctx context.Context, userID string) ([]notification.Notification, error)
}

type GroupCache interface {
	GetGroup(ctx context.Context, groupID string) (*group.Group, error)
	SetGroup(ctx context.Context, g group.Group) error
	InvalidateGroup(ctx context.Context, groupID string) error
}

type AttachmentStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key, fileName string) (string, time.Time, error)
}

// Options carries what every service shares: the bound on downstream
// calls, the clock that stamps records, logging and metrics.
type Options struct {
	Timeout time.Duration
	Now     func() time.Time
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

func (o Options) normalized() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	return o
}

// bounded derives a context for one downstream call.
func (o Options) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// now returns the store timestamp: UTC at microsecond precision, which
// every supported database round-trips exactly.
func (o Options) now() time.Time {
	return o.Now().UTC().Truncate(time.Microsecond)
}
