package main

import (
	"context"
	"log"

	"relay-chat/config"
	"relay-chat/internal/commands"
	"relay-chat/internal/handler"
	"relay-chat/internal/metrics"
	"relay-chat/internal/proxy"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"
	"relay-chat/internal/server"
	"relay-chat/internal/services"
	"relay-chat/internal/storage"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/database"
	"relay-chat/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	l.Logger = l.Logger.With(zap.String("instance_id", cfg.InstanceID))
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	rdb := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redis.Ping(ctx, rdb); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := services.Options{
		Timeout: cfg.DownstreamTimeout,
		Logger:  l,
		Metrics: m,
	}

	var attachments services.AttachmentStore
	if cfg.AttachmentsEnabled() {
		client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("Failed to configure attachment storage: %v", err)
		}
		attachments = client
	} else {
		l.Warnf("S3 settings missing, attachment links disabled")
	}

	// Repositories
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	access := proxy.NewAccessControl(conversationRepo)

	// Realtime stores
	publisher := redis.NewPublisher(rdb)
	registry := redis.NewRegistry(rdb, cfg.RegistryTTL)
	presence := redis.NewPresenceStore(rdb, publisher, cfg.PresenceTTL)
	queue := redis.NewNotificationQueue(rdb, cfg.NotificationTTL)
	cache := redis.NewCacheStore(rdb, redis.DefaultCacheConfig())
	limitCfg := redis.DefaultRateLimitConfig()
	limitCfg.ConnectLimit = cfg.WSConnectLimit
	limiter := redis.NewRateLimiter(rdb, limitCfg)

	hub := websocket.NewHub()
	dispatcher := websocket.NewDispatcher(hub, publisher)
	wsLogger := websocket.NewLogger(l)

	// Services
	authService := services.NewAuthService(cfg)
	conversations := services.NewConversationService(conversationRepo, access, opts)
	messages := services.NewMessageService(messageRepo, access, attachments, opts)
	receipts := services.NewReceiptService(messageRepo, access, registry, dispatcher, opts)
	typing := services.NewTypingService(registry, dispatcher, opts)
	connections := services.NewConnectionService(registry, presence, opts)
	notifications := services.NewNotificationService(queue, opts)
	groups := services.NewGroupService(groupRepo, conversations, access, cache, opts)
	delivery := services.NewDeliveryService(services.DeliveryDeps{
		Conversations: conversations,
		Messages:      messages,
		Receipts:      receipts,
		Groups:        groups,
		Notifications: notifications,
		Access:        access,
		Registry:      registry,
		Pusher:        dispatcher,
	}, opts)

	bus := commands.NewBus()
	services.RegisterCommandHandlers(bus, delivery, receipts, typing, groups)

	bridge := websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub, wsLogger)
	go func() {
		if err := bridge.Run(ctx, nil); err != nil && ctx.Err() == nil {
			l.Errorf("redis bridge stopped: %v", err)
			cancel()
		}
	}()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Messages:      handler.NewMessageHandler(delivery, messages, receipts),
		Conversations: handler.NewConversationHandler(conversations),
		Groups:        handler.NewGroupHandler(groups),
		Presence:      handler.NewPresenceHandler(connections),
		Notifications: handler.NewNotificationHandler(notifications),
		WebSocket: websocket.NewHandler(websocket.HandlerDeps{
			Auth:        authService,
			Hub:         hub,
			Bus:         bus,
			Connections: connections,
			Limiter:     limiter,
			Metrics:     m,
			Logger:      wsLogger,
		}),
	}, authService, limiter, server.Backends{DB: db, Redis: rdb})

	if err := srv.Start(ctx); err != nil {
		l.Errorf("server stopped with error: %v", err)
	}
}
