package services

import (
	"context"
	"errors"
	"strconv"

	"relay-chat/internal/domain/message"
	"relay-chat/internal/events"
	"relay-chat/internal/proxy"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"

	"go.uber.org/zap"
)

// ReceiptService applies delivered/read acknowledgements. Status only moves
// forward; acknowledgements that would not advance it are ignored.
type ReceiptService struct {
	repo   repository.MessageRepository
	access *proxy.AccessControl
	push   userPusher
	opts   Options
}

func NewReceiptService(repo repository.MessageRepository, access *proxy.AccessControl, registry ConnectionRegistry, pusher Pusher, opts Options) *ReceiptService {
	opts = opts.normalized()
	return &ReceiptService{
		repo:   repo,
		access: access,
		push:   userPusher{registry: registry, pusher: pusher, opts: opts},
		opts:   opts,
	}
}

// MarkDelivered advances a message to delivered. Unknown or already
// delivered messages are swallowed; the stored record is returned when known.
func (s *ReceiptService) MarkDelivered(ctx context.Context, messageID string) (message.Message, error) {
	msg, applied, err := s.advance(ctx, messageID, message.StatusDelivered)
	if errors.Is(err, relay_errors.ErrStaleAck) {
		s.opts.Logger.WithContext(ctx).Debug("stale delivery ack ignored", zap.String("message_id", messageID))
		return msg, nil
	}
	if err != nil {
		return message.Message{}, err
	}
	if !applied {
		s.opts.Logger.WithContext(ctx).Debug("delivery ack did not advance status",
			zap.String("message_id", messageID),
			zap.String("status", string(msg.Status)))
	}
	return msg, nil
}

// MarkRead records that readerID read the message and tells the original
// sender, if connected. The sender is always taken from the stored message.
func (s *ReceiptService) MarkRead(ctx context.Context, readerID, messageID string) (message.Message, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	msg, err := s.repo.GetByID(callCtx, messageID)
	if errors.Is(err, relay_errors.ErrNotFound) {
		return message.Message{}, relay_errors.ErrStaleAck
	}
	if err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	if msg.SenderID == readerID {
		return msg, nil
	}
	if err := s.access.CanViewConversation(callCtx, readerID, msg.ConversationID); err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}

	notify := false
	if msg.IsGroup() {
		first, err := s.repo.RecordReceipt(callCtx, messageID, readerID, s.opts.now())
		if err != nil {
			return message.Message{}, relay_errors.Unavailable(err)
		}
		notify = first
	}

	updated, applied, err := s.advance(ctx, messageID, message.StatusRead)
	if err != nil {
		return message.Message{}, err
	}
	if !msg.IsGroup() {
		notify = applied
	}

	if notify {
		receipt := events.ReadReceipt{MessageID: messageID, ReadBy: readerID}
		pushed, err := s.push.toUser(ctx, updated.SenderID, events.TypeMessageRead, receipt)
		if err != nil {
			s.opts.Logger.WithContext(ctx).Warn("read receipt push failed",
				zap.String("message_id", messageID),
				zap.String("sender_id", updated.SenderID),
				zap.Error(err))
		} else if !pushed {
			s.opts.Logger.WithContext(ctx).Debug("read receipt dropped, sender offline",
				zap.String("message_id", messageID))
		}
	}
	return updated, nil
}

// UpdateStatus is the REST form of an acknowledgement.
func (s *ReceiptService) UpdateStatus(ctx context.Context, userID, messageID, rawStatus string) (message.Message, error) {
	status, ok := message.ParseStatus(rawStatus)
	if !ok {
		return message.Message{}, relay_errors.Invalid("unknown status %q", rawStatus)
	}

	if status == message.StatusRead {
		msg, err := s.MarkRead(ctx, userID, messageID)
		if errors.Is(err, relay_errors.ErrStaleAck) {
			return message.Message{}, relay_errors.ErrNotFound
		}
		return msg, err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	msg, err := s.repo.GetByID(callCtx, messageID)
	if err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	if err := s.access.CanViewConversation(callCtx, userID, msg.ConversationID); err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	if !msg.Status.Advances(status) {
		return msg, nil
	}

	updated, _, err := s.advance(ctx, messageID, status)
	if errors.Is(err, relay_errors.ErrStaleAck) {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return updated, err
}

// advance runs the conditional update and records the outcome. An unknown
// message becomes ErrStaleAck.
func (s *ReceiptService) advance(ctx context.Context, messageID string, status message.Status) (message.Message, bool, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	msg, applied, err := s.repo.UpdateStatus(callCtx, messageID, status, s.opts.now())
	if errors.Is(err, relay_errors.ErrNotFound) {
		return message.Message{}, false, relay_errors.ErrStaleAck
	}
	if err != nil {
		return message.Message{}, false, relay_errors.Unavailable(err)
	}
	s.opts.Metrics.StatusUpdates.WithLabelValues(string(status), strconv.FormatBool(applied)).Inc()
	return msg, applied, nil
}
