package services

import (
	"context"
	"fmt"

	"relay-chat/internal/commands"
	"relay-chat/internal/events"
	relay_errors "relay-chat/pkg/errors"
)

// RegisterCommandHandlers binds every realtime command to the service that
// executes it.
func RegisterCommandHandlers(bus *commands.Bus, delivery *DeliveryService, receipts *ReceiptService, typing *TypingService, groups *GroupService) {
	bus.Register(events.TypeSendMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, unexpected(cmd)
		}
		msg, err := delivery.Send(ctx, c)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: msg.ID, Payload: msg}, nil
	}))

	bus.Register(events.TypeSendGroupMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.SendGroupMessageCommand)
		if !ok {
			return commands.Result{}, unexpected(cmd)
		}
		msg, err := delivery.SendGroup(ctx, c)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: msg.ID, Payload: msg}, nil
	}))

	bus.Register(events.TypeMarkAsRead, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.MarkReadCommand)
		if !ok {
			return commands.Result{}, unexpected(cmd)
		}
		msg, err := receipts.MarkRead(ctx, c.ReaderID, c.MessageID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: msg.ID, Payload: msg}, nil
	}))

	typingHandler := commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.TypingCommand)
		if !ok {
			return commands.Result{}, unexpected(cmd)
		}
		var err error
		if c.Stop {
			err = typing.NotifyStopTyping(ctx, c.FromID, c.ToID, c.ConversationID)
		} else {
			err = typing.NotifyTyping(ctx, c.FromID, c.ToID, c.ConversationID)
		}
		return commands.Result{AggregateID: c.ConversationID}, err
	})
	bus.Register(events.TypeTyping, typingHandler)
	bus.Register(events.TypeStopTyping, typingHandler)

	// Joining a group room requires membership; leaving never does.
	subscriptionHandler := commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.GroupSubscriptionCommand)
		if !ok {
			return commands.Result{}, unexpected(cmd)
		}
		if c.Leave {
			return commands.Result{AggregateID: c.GroupID}, nil
		}
		member, err := groups.IsMember(ctx, c.GroupID, c.UserID)
		if err != nil {
			return commands.Result{}, err
		}
		if !member {
			return commands.Result{}, fmt.Errorf("%w: not a member of group %s", relay_errors.ErrForbidden, c.GroupID)
		}
		return commands.Result{AggregateID: c.GroupID}, nil
	})
	bus.Register(events.TypeJoinGroup, subscriptionHandler)
	bus.Register(events.TypeLeaveGroup, subscriptionHandler)
}

func unexpected(cmd commands.Command) error {
	return fmt.Errorf("%w: unexpected command %T", relay_errors.ErrInvalidInput, cmd)
}
