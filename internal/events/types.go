package events

// Inbound frame types sent by clients
const (
	TypeSendMessage      = "send_message"
	TypeSendGroupMessage = "send_group_message"
	TypeTyping           = "typing"
	TypeStopTyping       = "stop_typing"
	TypeMarkAsRead       = "mark_as_read"
	TypeJoinGroup        = "join_group"
	TypeLeaveGroup       = "leave_group"
	TypePing             = "ping"
)

// Outbound frame types pushed to clients
const (
	TypeMessageSent     = "message_sent"
	TypeNewMessage      = "new_message"
	TypeNewGroupMessage = "new_group_message"
	TypeUserTyping      = "user_typing"
	TypeUserStopTyping  = "user_stop_typing"
	TypeMessageRead     = "message_read"
	TypeError           = "error"
	TypePong            = "pong"
)

type SendMessagePayload struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ReplyToID      string `json:"replyToId,omitempty"`
}

type SendGroupMessagePayload struct {
	GroupID   string `json:"groupId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	ReplyToID string `json:"replyToId,omitempty"`
}

type TypingPayload struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

// MarkAsReadPayload carries the sender id as a routing hint only; the
// stored message decides who is notified.
type MarkAsReadPayload struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId,omitempty"`
}

type GroupPayload struct {
	GroupID string `json:"groupId"`
}

type TypingSignal struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type ReadReceipt struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}
