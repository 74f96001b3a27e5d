package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/group"
	"relay-chat/internal/domain/message"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
	SearchLimit      = 50
	ConversationList = 50
)

// Page selects a window of a conversation's history. Before excludes every
// message created at or after the cursor.
type Page struct {
	Limit    int
	Before   *time.Time
	ViewerID string
}

// SearchFilter fields combine with AND semantics. Empty fields are ignored.
type SearchFilter struct {
	Query          string
	ConversationID string
	SenderID       string
	Type           message.Type
	From           *time.Time
	To             *time.Time
	ViewerID       string
	ParticipantID  string
	Limit          int
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id string) (message.Message, error)
	UpdateStatus(ctx context.Context, id string, status message.Status, at time.Time) (message.Message, bool, error)

	ListByConversation(ctx context.Context, conversationID string, page Page) ([]message.Message, error)
	Search(ctx context.Context, filter SearchFilter) ([]message.Message, error)

	AddReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	DeleteForUser(ctx context.Context, messageID, userID string) error

	RecordReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	ListReceipts(ctx context.Context, messageID string) ([]message.Receipt, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id string) (conversation.Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error)

	UpdateLastMessage(ctx context.Context, id string, last conversation.LastMessage) error
	IncrementUnread(ctx context.Context, conversationID, userID string) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

type GroupRepository interface {
	Create(ctx context.Context, g *group.Group, conv *conversation.Conversation) error
	GetByID(ctx context.Context, id string) (group.Group, error)
	AddMember(ctx context.Context, g group.Group, m *group.Member) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}
