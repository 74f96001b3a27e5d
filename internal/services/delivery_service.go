package services

import (
	"context"

	"relay-chat/internal/commands"
	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/notification"
	"relay-chat/internal/events"
	"relay-chat/internal/metrics"
	"relay-chat/internal/proxy"
	relay_errors "relay-chat/pkg/errors"

	"go.uber.org/zap"
)

const notificationExcerptRunes = 120

// DeliveryService is the fan-out engine. A message is persisted before any
// delivery is attempted; failures after that point are logged and never
// undo the write.
type DeliveryService struct {
	conversations *ConversationService
	messages      *MessageService
	receipts      *ReceiptService
	groups        *GroupService
	notifications *NotificationService
	access        *proxy.AccessControl
	registry      ConnectionRegistry
	pusher        Pusher
	push          userPusher
	opts          Options
}

type DeliveryDeps struct {
	Conversations *ConversationService
	Messages      *MessageService
	Receipts      *ReceiptService
	Groups        *GroupService
	Notifications *NotificationService
	Access        *proxy.AccessControl
	Registry      ConnectionRegistry
	Pusher        Pusher
}

func NewDeliveryService(deps DeliveryDeps, opts Options) *DeliveryService {
	opts = opts.normalized()
	return &DeliveryService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		receipts:      deps.Receipts,
		groups:        deps.Groups,
		notifications: deps.Notifications,
		access:        deps.Access,
		registry:      deps.Registry,
		pusher:        deps.Pusher,
		push:          userPusher{registry: deps.Registry, pusher: deps.Pusher, opts: opts},
		opts:          opts,
	}
}

// Send stores a direct message and fans it out: the sender gets
// message_sent, a connected receiver gets new_message and the message is
// marked delivered, an offline receiver gets a queued notification.
func (s *DeliveryService) Send(ctx context.Context, cmd commands.SendMessageCommand) (message.Message, error) {
	if err := cmd.Validate(); err != nil {
		return message.Message{}, err
	}
	s.composed(ctx, cmd.SenderID)
	msgType, payload, err := commands.DecodedPayload(cmd.Type, cmd.Content)
	if err != nil {
		return message.Message{}, err
	}

	conv, err := s.conversations.Resolve(ctx, cmd.SenderID, cmd.ReceiverID, cmd.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	if conv.Type != conversation.TypeDirect {
		return message.Message{}, relay_errors.Invalid("conversation %s is a group conversation", conv.ID)
	}
	receiverID, ok := conv.Counterpart(cmd.SenderID)
	if !ok {
		return message.Message{}, relay_errors.Invalid("conversation %s has no receiver", conv.ID)
	}
	if cmd.ReceiverID != "" && cmd.ReceiverID != receiverID {
		return message.Message{}, relay_errors.Invalid("receiverId does not belong to conversation %s", conv.ID)
	}

	replyTo, err := s.messages.replySnapshot(ctx, conv.ID, cmd.ReplyToID)
	if err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		ReceiverID:     &receiverID,
		Type:           msgType,
		Content:        cmd.Content,
		ReplyTo:        replyTo,
	}
	if err := s.messages.append(ctx, &msg, payload); err != nil {
		return message.Message{}, err
	}
	s.opts.Metrics.MessagesSent.WithLabelValues(string(conversation.TypeDirect)).Inc()

	log := s.opts.Logger.WithContext(ctx).With(
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", conv.ID),
	)
	log.Debug("message stored", zap.String("state", string(message.StateStored)))

	if err := s.conversations.RecordMessage(ctx, conv, msg); err != nil {
		log.Warn("conversation summary update failed", zap.Error(err))
	}

	s.ack(ctx, log, msg)

	log.Debug("delivering message", zap.String("state", string(message.StateAttemptedDelivery)))
	delivered, err := s.deliverDirect(ctx, msg)
	if err != nil {
		log.Warn("delivery failed", zap.String("receiver_id", receiverID), zap.Error(err))
	}
	if delivered {
		log.Debug("message delivered", zap.String("state", string(message.StateDelivered)))
		updated, err := s.receipts.MarkDelivered(ctx, msg.ID)
		if err != nil {
			log.Warn("delivery ack failed", zap.Error(err))
		} else if updated.ID != "" {
			msg = updated
		}
		return msg, nil
	}

	s.queueOffline(ctx, log, receiverID, s.notificationFor(msg, notification.KindNewMessage))
	return msg, nil
}

// SendGroup stores a group message, broadcasts it to every subscribed member
// connection except the sender and queues notifications for members with no
// live connection. A member is live when the registry holds a connection for
// them; room subscriptions are per instance and are not consulted, so a
// registered member who never sent join_group misses the broadcast and gets
// no notification.
func (s *DeliveryService) SendGroup(ctx context.Context, cmd commands.SendGroupMessageCommand) (message.Message, error) {
	if err := cmd.Validate(); err != nil {
		return message.Message{}, err
	}
	s.composed(ctx, cmd.SenderID)
	msgType, payload, err := commands.DecodedPayload(cmd.Type, cmd.Content)
	if err != nil {
		return message.Message{}, err
	}

	g, err := s.groups.Get(ctx, cmd.GroupID)
	if err != nil {
		return message.Message{}, err
	}
	if err := s.access.CanPostToGroup(ctx, cmd.SenderID, g); err != nil {
		return message.Message{}, err
	}

	replyTo, err := s.messages.replySnapshot(ctx, g.ConversationID, cmd.ReplyToID)
	if err != nil {
		return message.Message{}, err
	}

	groupID := g.ID
	msg := message.Message{
		ConversationID: g.ConversationID,
		SenderID:       cmd.SenderID,
		GroupID:        &groupID,
		Type:           msgType,
		Content:        cmd.Content,
		ReplyTo:        replyTo,
	}
	if err := s.messages.append(ctx, &msg, payload); err != nil {
		return message.Message{}, err
	}
	s.opts.Metrics.MessagesSent.WithLabelValues(string(conversation.TypeGroup)).Inc()

	log := s.opts.Logger.WithContext(ctx).With(
		zap.String("message_id", msg.ID),
		zap.String("group_id", g.ID),
	)
	log.Debug("message stored", zap.String("state", string(message.StateStored)))

	conv := conversation.Conversation{ID: g.ConversationID, Type: conversation.TypeGroup}
	if err := s.conversations.RecordMessage(ctx, conv, msg); err != nil {
		log.Warn("conversation summary update failed", zap.Error(err))
	}

	s.ack(ctx, log, msg)

	if err := s.broadcast(ctx, g.ID, cmd.SenderID, msg); err != nil {
		s.opts.Metrics.Deliveries.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Warn("group broadcast failed", zap.Error(err))
	}

	anyLive := false
	n := s.notificationFor(msg, notification.KindNewGroupMessage)
	for _, memberID := range g.MemberIDs() {
		if memberID == cmd.SenderID {
			continue
		}
		live, err := s.isLive(ctx, memberID)
		if err != nil {
			log.Warn("registry lookup failed", zap.String("member_id", memberID), zap.Error(err))
		}
		if live {
			anyLive = true
			s.opts.Metrics.Deliveries.WithLabelValues(metrics.OutcomePushed).Inc()
			continue
		}
		s.queueOffline(ctx, log, memberID, n)
	}

	if anyLive {
		updated, err := s.receipts.MarkDelivered(ctx, msg.ID)
		if err != nil {
			log.Warn("delivery ack failed", zap.Error(err))
		} else if updated.ID != "" {
			msg = updated
		}
	}
	return msg, nil
}

func (s *DeliveryService) composed(ctx context.Context, senderID string) {
	s.opts.Logger.WithContext(ctx).Debug("message composed",
		zap.String("sender_id", senderID),
		zap.String("state", string(message.StateComposed)))
}

// ack confirms the stored message to the sender's own connection.
func (s *DeliveryService) ack(ctx context.Context, log *zap.Logger, msg message.Message) {
	if _, err := s.push.toUser(ctx, msg.SenderID, events.TypeMessageSent, msg); err != nil {
		log.Warn("sender ack failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
	}
}

// deliverDirect pushes new_message to the receiver's registered connection.
func (s *DeliveryService) deliverDirect(ctx context.Context, msg message.Message) (bool, error) {
	pushed, err := s.push.toUser(ctx, *msg.ReceiverID, events.TypeNewMessage, msg)
	switch {
	case err != nil:
		s.opts.Metrics.Deliveries.WithLabelValues(metrics.OutcomeFailed).Inc()
		return false, relay_errors.Unavailable(err)
	case pushed:
		s.opts.Metrics.Deliveries.WithLabelValues(metrics.OutcomePushed).Inc()
	}
	return pushed, nil
}

func (s *DeliveryService) broadcast(ctx context.Context, groupID, senderID string, msg message.Message) error {
	frame, err := events.Encode(events.TypeNewGroupMessage, msg)
	if err != nil {
		return err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	return s.pusher.BroadcastGroup(callCtx, groupID, senderID, frame)
}

func (s *DeliveryService) isLive(ctx context.Context, userID string) (bool, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	_, found, err := s.registry.Lookup(callCtx, userID)
	return found, err
}

func (s *DeliveryService) queueOffline(ctx context.Context, log *zap.Logger, userID string, n notification.Notification) {
	if err := s.notifications.enqueue(ctx, userID, n); err != nil {
		log.Warn("notification enqueue failed", zap.String("recipient_id", userID), zap.Error(err))
		return
	}
	s.opts.Metrics.Deliveries.WithLabelValues(metrics.OutcomeQueuedOffline).Inc()
	log.Debug("recipient offline", zap.String("recipient_id", userID), zap.String("state", string(message.StateQueuedOffline)))
}

func (s *DeliveryService) notificationFor(msg message.Message, kind notification.Kind) notification.Notification {
	n := notification.Notification{
		Type:           kind,
		SenderID:       msg.SenderID,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Content:        msg.Excerpt(notificationExcerptRunes),
		Timestamp:      msg.CreatedAt,
	}
	if msg.GroupID != nil {
		n.GroupID = *msg.GroupID
	}
	return n
}
