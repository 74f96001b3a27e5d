package services

import (
	"context"

	"relay-chat/internal/events"
	"relay-chat/internal/metrics"
	relay_errors "relay-chat/pkg/errors"

	"go.uber.org/zap"
)

// TypingService relays ephemeral typing signals. Nothing is stored; a
// signal for an offline user is dropped.
type TypingService struct {
	push userPusher
	opts Options
}

func NewTypingService(registry ConnectionRegistry, pusher Pusher, opts Options) *TypingService {
	opts = opts.normalized()
	return &TypingService{push: userPusher{registry: registry, pusher: pusher, opts: opts}, opts: opts}
}

func (s *TypingService) NotifyTyping(ctx context.Context, fromID, toID, conversationID string) error {
	return s.relay(ctx, events.TypeUserTyping, fromID, toID, conversationID)
}

func (s *TypingService) NotifyStopTyping(ctx context.Context, fromID, toID, conversationID string) error {
	return s.relay(ctx, events.TypeUserStopTyping, fromID, toID, conversationID)
}

func (s *TypingService) relay(ctx context.Context, eventType, fromID, toID, conversationID string) error {
	if fromID == "" || toID == "" {
		return relay_errors.Invalid("typing requires a sender and a receiver")
	}

	signal := events.TypingSignal{UserID: fromID, ConversationID: conversationID}
	pushed, err := s.push.toUser(ctx, toID, eventType, signal)
	if err != nil {
		s.opts.Metrics.TypingSignals.WithLabelValues(metrics.OutcomeDropped).Inc()
		s.opts.Logger.WithContext(ctx).Debug("typing signal dropped",
			zap.String("event", eventType),
			zap.String("to", toID),
			zap.Error(err))
		return nil
	}
	if !pushed {
		s.opts.Metrics.TypingSignals.WithLabelValues(metrics.OutcomeDropped).Inc()
		return nil
	}
	s.opts.Metrics.TypingSignals.WithLabelValues(metrics.OutcomeRelayed).Inc()
	return nil
}
