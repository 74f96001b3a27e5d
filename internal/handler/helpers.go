package handler

import (
	"net/http"
	"strconv"
	"time"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// currentUser aborts with 401 when the auth middleware did not run.
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return "", false
	}
	return userID, true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, relay_errors.Invalid("invalid integer %q", value)
	}
	return n, nil
}

// parseTime accepts RFC3339 with or without fractional seconds.
func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, relay_errors.Invalid("%s must be an RFC3339 timestamp", field)
	}
	t = t.UTC()
	return &t, nil
}
