package httpdto

type SendMessageRequest struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content" binding:"required"`
	Type           string `json:"type"`
	ReplyToID      string `json:"replyToId"`
}

type SendGroupMessageRequest struct {
	GroupID   string `json:"groupId" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Type      string `json:"type"`
	ReplyToID string `json:"replyToId"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// DeletedResponse acknowledges a delete-for-me.
type DeletedResponse struct {
	MessageID string `json:"messageId"`
	Deleted   bool   `json:"deleted"`
}
