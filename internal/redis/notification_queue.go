package redis

import (
	"context"
	"encoding/json"
	"time"

	"relay-chat/internal/domain/notification"

	goredis "github.com/redis/go-redis/v9"
)

const (
	notificationKeyPrefix = "notifications:"

	// DefaultNotificationTTL bounds how long queued notifications are kept.
	DefaultNotificationTTL = 24 * time.Hour
	// MaxNotifications caps each recipient's queue; older entries fall off.
	MaxNotifications = 200
)

// NotificationQueue keeps best-effort notification records for recipients
// who were offline during fan-out.
type NotificationQueue struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewNotificationQueue(client goredis.UniversalClient, ttl time.Duration) *NotificationQueue {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationQueue{client: client, ttl: ttl}
}

func NotificationKey(userID string) string {
	return notificationKeyPrefix + userID
}

// Enqueue pushes n onto userID's queue and renews its retention.
func (q *NotificationQueue) Enqueue(ctx context.Context, userID string, n notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := NotificationKey(userID)
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, MaxNotifications-1)
	pipe.Expire(ctx, key, q.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns queued notifications, newest first.
func (q *NotificationQueue) List(ctx context.Context, userID string) ([]notification.Notification, error) {
	raw, err := q.client.LRange(ctx, NotificationKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeNotifications(raw), nil
}

// Drain returns and removes every queued notification.
func (q *NotificationQueue) Drain(ctx context.Context, userID string) ([]notification.Notification, error) {
	key := NotificationKey(userID)
	pipe := q.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return decodeNotifications(rangeCmd.Val()), nil
}

func decodeNotifications(raw []string) []notification.Notification {
	out := make([]notification.Notification, 0, len(raw))
	for _, item := range raw {
		var n notification.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
