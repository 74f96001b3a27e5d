package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay-chat/config"
	"relay-chat/internal/handler"
	"relay-chat/internal/middleware"
	"relay-chat/internal/redis"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/database"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Messages      *handler.MessageHandler
	Conversations *handler.ConversationHandler
	Groups        *handler.GroupHandler
	Presence      *handler.PresenceHandler
	Notifications *handler.NotificationHandler
	WebSocket     *websocket.Handler
}

// Backends are checked by /health.
type Backends struct {
	DB    *gorm.DB
	Redis *goredis.Client
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetupRoutes mounts every endpoint. limiter may be nil.
func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter, backends Backends) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if backends.DB != nil {
			if err := database.HealthCheck(ctx, backends.DB); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		if backends.Redis != nil {
			if err := redis.Ping(ctx, backends.Redis); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/ws", handlers.WebSocket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(authService))

	sendLimit := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		sendLimit = middleware.MessageRateLimitMiddleware(limiter)
	}

	messages := v1.Group("/messages")
	{
		messages.POST("", sendLimit, handlers.Messages.Send)
		messages.POST("/group", sendLimit, handlers.Messages.SendGroup)
		messages.GET("/search", handlers.Messages.Search)
		messages.GET("/:id", handlers.Messages.History)
		messages.PUT("/:id/status", handlers.Messages.UpdateStatus)
		messages.POST("/:id/reactions", handlers.Messages.AddReaction)
		messages.DELETE("/:id/reactions/:emoji", handlers.Messages.RemoveReaction)
		messages.DELETE("/:id", handlers.Messages.DeleteForMe)
		messages.GET("/:id/attachment", handlers.Messages.Attachment)
		messages.GET("/:id/readers", handlers.Messages.Readers)
	}

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id", handlers.Conversations.ListForUser)
		conversations.POST("/:id/read", handlers.Conversations.MarkRead)
	}

	groups := v1.Group("/groups")
	{
		groups.POST("", handlers.Groups.Create)
		groups.GET("/:id", handlers.Groups.Get)
		groups.POST("/:id/members", handlers.Groups.AddMember)
	}

	v1.GET("/presence/:id", handlers.Presence.Get)
	v1.GET("/notifications", handlers.Notifications.List)
}

// Start serves until ctx is cancelled or the process is signalled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case <-quit:
		if s.logger != nil {
			s.logger.Infof("Quitting signal received, shutting down")
		}
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Warnf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
