package message

import (
	"time"

	"gorm.io/datatypes"
)

// Message represents the messages table
type Message struct {
	ID             string         `gorm:"primaryKey;size:64" json:"id"`
	ConversationID string         `gorm:"size:64;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string         `gorm:"size:64;not null;index" json:"senderId"`
	ReceiverID     *string        `gorm:"size:64;index" json:"receiverId,omitempty"`
	GroupID        *string        `gorm:"size:64;index" json:"groupId,omitempty"`
	Type           Type           `gorm:"size:16;not null;default:text" json:"type"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Payload        datatypes.JSON `json:"payload,omitempty"`
	Status         Status         `gorm:"size:16;not null;default:sent" json:"status"`
	ReplyTo        *ReplyTo       `gorm:"serializer:json" json:"replyTo,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	Reactions      []Reaction     `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// ReplyTo is a denormalized snapshot of the message being replied to.
// Clients resolve SenderID to a display name through the profile service.
type ReplyTo struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
}

// Reaction represents message_reactions. A user holds at most one row per emoji.
type Reaction struct {
	MessageID string    `gorm:"primaryKey;size:64" json:"-"`
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	Emoji     string    `gorm:"primaryKey;size:32" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Deletion hides a message from a single user's history.
type Deletion struct {
	MessageID string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"primaryKey;size:64"`
	DeletedAt time.Time `gorm:"not null"`
}

// Receipt is a per-recipient read marker for group messages.
type Receipt struct {
	MessageID string    `gorm:"primaryKey;size:64" json:"messageId"`
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	ReadAt    time.Time `gorm:"not null" json:"readAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (Deletion) TableName() string {
	return "message_deletions"
}

func (Receipt) TableName() string {
	return "message_receipts"
}

// IsGroup reports whether the message was sent to a group.
func (m Message) IsGroup() bool {
	return m.GroupID != nil && *m.GroupID != ""
}

// Excerpt returns at most n runes of the content, used for reply snapshots.
func (m Message) Excerpt(n int) string {
	r := []rune(m.Content)
	if len(r) <= n {
		return m.Content
	}
	return string(r[:n])
}
