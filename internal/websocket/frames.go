package websocket

import (
	"context"
	"errors"
	"time"

	"relay-chat/internal/commands"
	"relay-chat/internal/events"
	relay_errors "relay-chat/pkg/errors"

	"go.uber.org/zap"
)

// handleFrame decodes one inbound frame and executes it. Failures are
// reported to the client as error frames and never end the session.
func (h *Handler) handleFrame(ctx context.Context, client *Client, raw []byte) {
	env, err := events.Decode(raw)
	if err != nil {
		h.sendError(client, relay_errors.Invalid("%v", err))
		return
	}

	if err := h.dispatch(ctx, client, env); err != nil {
		if errors.Is(err, relay_errors.ErrStaleAck) {
			h.logger.Debug("stale acknowledgement ignored", client.UserID, client.ID, zap.String("type", env.Type))
			return
		}
		if !relay_errors.IsClientError(err) {
			h.logger.Error("frame handling failed", client.UserID, client.ID, err, zap.String("type", env.Type))
		}
		h.sendError(client, err)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, env events.Envelope) error {
	switch env.Type {
	case events.TypePing:
		if err := h.connections.Heartbeat(ctx, client.UserID, client.ID); err != nil {
			h.logger.Warn("heartbeat failed", client.UserID, client.ID, zap.Error(err))
		}
		return h.send(client, events.TypePong, events.PongPayload{Timestamp: time.Now().UnixMilli()})

	case events.TypeSendMessage:
		var p events.SendMessagePayload
		if err := env.DecodeData(&p); err != nil {
			return relay_errors.Invalid("%v", err)
		}
		if err := h.allowMessage(ctx, client.UserID); err != nil {
			return err
		}
		_, err := h.bus.Execute(ctx, commands.SendMessageCommand{
			SenderID:       client.UserID,
			ReceiverID:     p.ReceiverID,
			ConversationID: p.ConversationID,
			Content:        p.Content,
			Type:           p.Type,
			ReplyToID:      p.ReplyToID,
		})
		return err

	case events.TypeSendGroupMessage:
		var p events.SendGroupMessagePayload
		if err := env.DecodeData(&p); err != nil {
			return relay_errors.Invalid("%v", err)
		}
		if err := h.allowMessage(ctx, client.UserID); err != nil {
			return err
		}
		_, err := h.bus.Execute(ctx, commands.SendGroupMessageCommand{
			SenderID:  client.UserID,
			GroupID:   p.GroupID,
			Content:   p.Content,
			Type:      p.Type,
			ReplyToID: p.ReplyToID,
		})
		return err

	case events.TypeTyping, events.TypeStopTyping:
		var p events.TypingPayload
		if err := env.DecodeData(&p); err != nil {
			return relay_errors.Invalid("%v", err)
		}
		_, err := h.bus.Execute(ctx, commands.TypingCommand{
			FromID:         client.UserID,
			ToID:           p.ReceiverID,
			ConversationID: p.ConversationID,
			Stop:           env.Type == events.TypeStopTyping,
		})
		return err

	case events.TypeMarkAsRead:
		var p events.MarkAsReadPayload
		if err := env.DecodeData(&p); err != nil {
			return relay_errors.Invalid("%v", err)
		}
		_, err := h.bus.Execute(ctx, commands.MarkReadCommand{
			ReaderID:   client.UserID,
			MessageID:  p.MessageID,
			SenderHint: p.SenderID,
		})
		return err

	case events.TypeJoinGroup, events.TypeLeaveGroup:
		var p events.GroupPayload
		if err := env.DecodeData(&p); err != nil {
			return relay_errors.Invalid("%v", err)
		}
		leave := env.Type == events.TypeLeaveGroup
		if _, err := h.bus.Execute(ctx, commands.GroupSubscriptionCommand{
			UserID:  client.UserID,
			GroupID: p.GroupID,
			Leave:   leave,
		}); err != nil {
			return err
		}
		if leave {
			h.hub.Unsubscribe(client, p.GroupID)
		} else {
			h.hub.Subscribe(client, p.GroupID)
		}
		return nil

	default:
		return relay_errors.Invalid("unknown event type %q", env.Type)
	}
}

// allowMessage applies the per-user send limit. A limiter failure lets the
// message through.
func (h *Handler) allowMessage(ctx context.Context, userID string) error {
	if h.limiter == nil {
		return nil
	}
	result, err := h.limiter.AllowMessage(ctx, userID)
	if err != nil {
		h.logger.Warn("message rate limit check failed", userID, "", zap.Error(err))
		return nil
	}
	if !result.Allowed {
		return relay_errors.ErrRateLimited
	}
	return nil
}

func (h *Handler) send(client *Client, eventType string, data interface{}) error {
	frame, err := events.Encode(eventType, data)
	if err != nil {
		return err
	}
	client.SendMessage(frame)
	return nil
}

func (h *Handler) sendError(client *Client, err error) {
	message := err.Error()
	if !relay_errors.IsClientError(err) && !errors.Is(err, relay_errors.ErrRateLimited) &&
		!errors.Is(err, relay_errors.ErrAlreadyExists) {
		message = "request failed"
		if errors.Is(err, relay_errors.ErrServiceUnavailable) {
			message = "service temporarily unavailable"
		}
	}
	payload := events.ErrorPayload{Message: message, Code: relay_errors.Code(err)}
	if sendErr := h.send(client, events.TypeError, payload); sendErr != nil {
		h.logger.Error("error frame encode failed", client.UserID, client.ID, sendErr)
	}
}
