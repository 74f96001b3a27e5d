package notification

import "time"

type Kind string

const (
	KindNewMessage      Kind = "new_message"
	KindNewGroupMessage Kind = "new_group_message"
)

// Notification is a best-effort record kept for a recipient who had no live
// connection when a message was fanned out.
type Notification struct {
	Type           Kind      `json:"type"`
	SenderID       string    `json:"senderId"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	GroupID        string    `json:"groupId,omitempty"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}
