package websocket

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"relay-chat/internal/commands"
	"relay-chat/internal/metrics"
	"relay-chat/internal/redis"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated requests and runs the realtime session of
// each connection.
type Handler struct {
	auth        *services.AuthService
	hub         *Hub
	bus         *commands.Bus
	connections *services.ConnectionService
	limiter     *redis.RateLimiter
	metrics     *metrics.Metrics
	logger      *Logger
}

type HandlerDeps struct {
	Auth        *services.AuthService
	Hub         *Hub
	Bus         *commands.Bus
	Connections *services.ConnectionService
	// Limiter may be nil, which disables connection and message limits.
	Limiter *redis.RateLimiter
	Metrics *metrics.Metrics
	Logger  *Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = NewLogger(nil)
	}
	return &Handler{
		auth:        deps.Auth,
		hub:         deps.Hub,
		bus:         deps.Bus,
		connections: deps.Connections,
		limiter:     deps.Limiter,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// Connect authenticates the handshake, upgrades it and serves the
// connection until it closes. Authentication failures are answered with
// 401 before any upgrade.
func (h *Handler) Connect(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing token", "UNAUTHORIZED"))
		return
	}
	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid token", "UNAUTHORIZED"))
		return
	}
	userID := claims.Identity()

	if h.limiter != nil {
		result, err := h.limiter.AllowConnect(c.Request.Context(), c.ClientIP())
		if err != nil {
			h.logger.Warn("connect rate limit check failed", userID, "", zap.Error(err))
		} else if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.ResetIn.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("too many connection attempts", "RATE_LIMITED"))
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", userID, "", err)
		return
	}

	client := NewClient(conn, uuid.NewString(), userID, h.metrics.FramesDropped, h.logger)
	ctx := services.WithUserContext(context.Background(), claims)
	h.serve(ctx, client)
}

func (h *Handler) serve(ctx context.Context, client *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.hub.Register(client)
	go client.writePump()

	if err := h.connections.Connect(ctx, client.UserID, client.ID); err != nil {
		h.logger.Error("connection registration failed", client.UserID, client.ID, err)
		h.sendError(client, err)
		h.hub.Unregister(client)
		return
	}
	h.logger.Info("client connected", client.UserID, client.ID)

	client.readPump(ctx, func(ctx context.Context, frame []byte) {
		h.handleFrame(ctx, client, frame)
	}, func() {
		if err := h.connections.Heartbeat(ctx, client.UserID, client.ID); err != nil {
			h.logger.Warn("heartbeat failed", client.UserID, client.ID, zap.Error(err))
		}
	})

	h.hub.Unregister(client)
	if err := h.connections.Disconnect(context.Background(), client.UserID, client.ID); err != nil {
		h.logger.Error("connection cleanup failed", client.UserID, client.ID, err)
	}
	h.logger.Info("client disconnected", client.UserID, client.ID)
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
