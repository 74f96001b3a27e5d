package commands

import (
	"strings"

	"relay-chat/internal/domain/message"
	"relay-chat/internal/events"
	relay_errors "relay-chat/pkg/errors"
)

type SendMessageCommand struct {
	SenderID       string
	ReceiverID     string
	ConversationID string
	Content        string
	Type           string
	ReplyToID      string
}

func (SendMessageCommand) CommandType() string {
	return events.TypeSendMessage
}

// Validate runs before anything is persisted.
func (c SendMessageCommand) Validate() error {
	if c.SenderID == "" {
		return relay_errors.Invalid("senderId is required")
	}
	if c.ReceiverID == "" && c.ConversationID == "" {
		return relay_errors.Invalid("receiverId or conversationId is required")
	}
	if c.ReceiverID != "" && c.ReceiverID == c.SenderID {
		return relay_errors.Invalid("receiverId must differ from senderId")
	}
	return validateContent(c.Type, c.Content)
}

type SendGroupMessageCommand struct {
	SenderID  string
	GroupID   string
	Content   string
	Type      string
	ReplyToID string
}

func (SendGroupMessageCommand) CommandType() string {
	return events.TypeSendGroupMessage
}

func (c SendGroupMessageCommand) Validate() error {
	if c.SenderID == "" {
		return relay_errors.Invalid("senderId is required")
	}
	if c.GroupID == "" {
		return relay_errors.Invalid("groupId is required")
	}
	return validateContent(c.Type, c.Content)
}

// DecodedPayload returns the typed payload of a validated command.
func DecodedPayload(rawType, content string) (message.Type, message.Payload, error) {
	t, ok := message.ParseType(rawType)
	if !ok {
		return "", nil, relay_errors.Invalid("unknown message type %q", rawType)
	}
	p, err := message.DecodePayload(t, content)
	if err != nil {
		return "", nil, relay_errors.Invalid("%v", err)
	}
	return t, p, nil
}

func validateContent(rawType, content string) error {
	if strings.TrimSpace(content) == "" {
		return relay_errors.Invalid("content is required")
	}
	_, _, err := DecodedPayload(rawType, content)
	return err
}

type MarkReadCommand struct {
	ReaderID   string
	MessageID  string
	SenderHint string
}

func (MarkReadCommand) CommandType() string {
	return events.TypeMarkAsRead
}

func (c MarkReadCommand) Validate() error {
	if c.ReaderID == "" {
		return relay_errors.Invalid("readerId is required")
	}
	if c.MessageID == "" {
		return relay_errors.Invalid("messageId is required")
	}
	return nil
}

type TypingCommand struct {
	FromID         string
	ToID           string
	ConversationID string
	Stop           bool
}

func (c TypingCommand) CommandType() string {
	if c.Stop {
		return events.TypeStopTyping
	}
	return events.TypeTyping
}

func (c TypingCommand) Validate() error {
	if c.FromID == "" {
		return relay_errors.Invalid("userId is required")
	}
	if c.ToID == "" {
		return relay_errors.Invalid("receiverId is required")
	}
	return nil
}

type GroupSubscriptionCommand struct {
	UserID  string
	GroupID string
	Leave   bool
}

func (c GroupSubscriptionCommand) CommandType() string {
	if c.Leave {
		return events.TypeLeaveGroup
	}
	return events.TypeJoinGroup
}

func (c GroupSubscriptionCommand) Validate() error {
	if c.UserID == "" {
		return relay_errors.Invalid("userId is required")
	}
	if c.GroupID == "" {
		return relay_errors.Invalid("groupId is required")
	}
	return nil
}
