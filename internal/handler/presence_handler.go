package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	connections *services.ConnectionService
}

func NewPresenceHandler(connections *services.ConnectionService) *PresenceHandler {
	return &PresenceHandler{connections: connections}
}

func (h *PresenceHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	userID := c.Param("id")
	statuses, err := h.connections.Presence(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(statuses[userID]))
}
