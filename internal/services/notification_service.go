package services

import (
	"context"

	"relay-chat/internal/domain/notification"
	relay_errors "relay-chat/pkg/errors"
)

type NotificationService struct {
	queue NotificationQueue
	opts  Options
}

func NewNotificationService(queue NotificationQueue, opts Options) *NotificationService {
	return &NotificationService{queue: queue, opts: opts.normalized()}
}

// List returns the queued records, newest first, leaving them queued.
func (s *NotificationService) List(ctx context.Context, userID string) ([]notification.Notification, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	list, err := s.queue.List(callCtx, userID)
	return list, relay_errors.Unavailable(err)
}

// Drain returns the queued records and clears the queue.
func (s *NotificationService) Drain(ctx context.Context, userID string) ([]notification.Notification, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	list, err := s.queue.Drain(callCtx, userID)
	return list, relay_errors.Unavailable(err)
}

func (s *NotificationService) enqueue(ctx context.Context, userID string, n notification.Notification) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	return relay_errors.Unavailable(s.queue.Enqueue(callCtx, userID, n))
}
