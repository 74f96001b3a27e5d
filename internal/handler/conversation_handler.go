package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.list(c, userID)
}

// ListForUser only serves the caller's own list.
func (h *ConversationHandler) ListForUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if c.Param("id") != userID {
		_ = c.Error(relay_errors.ErrForbidden)
		return
	}
	h.list(c, userID)
}

func (h *ConversationHandler) list(c *gin.Context, userID string) {
	convs, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(convs))
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID := c.Param("id")
	if err := h.service.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{ConversationID: conversationID}))
}
