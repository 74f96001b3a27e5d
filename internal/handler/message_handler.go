package handler

import (
	"net/http"

	"relay-chat/internal/commands"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	delivery *services.DeliveryService
	messages *services.MessageService
	receipts *services.ReceiptService
}

func NewMessageHandler(delivery *services.DeliveryService, messages *services.MessageService, receipts *services.ReceiptService) *MessageHandler {
	return &MessageHandler{delivery: delivery, messages: messages, receipts: receipts}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.delivery.Send(c.Request.Context(), commands.SendMessageCommand{
		SenderID:       userID,
		ReceiverID:     req.ReceiverID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Type:           req.Type,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) SendGroup(c *gin.Context) {
	var req httpdto.SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.delivery.SendGroup(c.Request.Context(), commands.SendGroupMessageCommand{
		SenderID:  userID,
		GroupID:   req.GroupID,
		Content:   req.Content,
		Type:      req.Type,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

// History serves GET /v1/messages/:id where id names a conversation.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	before, err := parseTime("before", c.Query("before"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), services.HistoryQuery{
		ConversationID: c.Param("id"),
		ViewerID:       userID,
		Limit:          limit,
		Before:         before,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

func (h *MessageHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	from, err := parseTime("dateFrom", c.Query("dateFrom"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	to, err := parseTime("dateTo", c.Query("dateTo"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	msgs, err := h.messages.Search(c.Request.Context(), services.SearchQuery{
		ViewerID:       userID,
		Query:          c.Query("query"),
		ConversationID: c.Query("conversationId"),
		SenderID:       c.Query("sender"),
		Type:           c.Query("type"),
		From:           from,
		To:             to,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

func (h *MessageHandler) UpdateStatus(c *gin.Context) {
	var req httpdto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.receipts.UpdateStatus(c.Request.Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	var req httpdto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.messages.AddReaction(c.Request.Context(), userID, c.Param("id"), req.Emoji)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.messages.RemoveReaction(c.Request.Context(), userID, c.Param("id"), c.Param("emoji"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	messageID := c.Param("id")
	if err := h.messages.DeleteForMe(c.Request.Context(), userID, messageID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DeletedResponse{MessageID: messageID, Deleted: true}))
}

func (h *MessageHandler) Attachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	link, err := h.messages.AttachmentLink(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(link))
}

func (h *MessageHandler) Readers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	receipts, err := h.messages.GroupReaders(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(receipts))
}
