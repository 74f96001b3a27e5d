package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/events"
	"relay-chat/internal/metrics"
	"relay-chat/internal/proxy"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"
	"relay-chat/internal/testutil"
	"relay-chat/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type pushedFrame struct {
	handleID string
	frame    events.Envelope
}

type groupFrame struct {
	groupID string
	except  string
	frame   events.Envelope
}

// recordingPusher captures every frame instead of writing to sockets.
type recordingPusher struct {
	mu         sync.Mutex
	pushes     []pushedFrame
	broadcasts []groupFrame
	err        error
}

func (p *recordingPusher) PushToConnection(_ context.Context, handleID string, frame []byte) error {
	env, err := events.Decode(frame)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pushes = append(p.pushes, pushedFrame{handleID: handleID, frame: env})
	return nil
}

func (p *recordingPusher) BroadcastGroup(_ context.Context, groupID, exceptUserID string, frame []byte) error {
	env, err := events.Decode(frame)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, groupFrame{groupID: groupID, except: exceptUserID, frame: env})
	return nil
}

// framesFor returns the frames pushed to handleID with the given type.
func (p *recordingPusher) framesFor(handleID, eventType string) []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Envelope
	for _, pf := range p.pushes {
		if pf.handleID == handleID && pf.frame.Type == eventType {
			out = append(out, pf.frame)
		}
	}
	return out
}

type fixture struct {
	mr     *miniredis.Miniredis
	redis  *goredis.Client
	pusher *recordingPusher
	logs   *observer.ObservedLogs

	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository

	registry      *redis.Registry
	presence      *redis.PresenceStore
	queue         *redis.NotificationQueue
	conversations *ConversationService
	messages      *MessageService
	receipts      *ReceiptService
	typing        *TypingService
	connections   *ConnectionService
	groups        *GroupService
	notifications *NotificationService
	delivery      *DeliveryService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithAttachments(t, nil)
}

func newFixtureWithAttachments(t *testing.T, attachments AttachmentStore) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	mr, rdb := testutil.NewRedis(t)
	core, logs := observer.New(zapcore.DebugLevel)
	opts := Options{
		Timeout: 5 * time.Second,
		Metrics: metrics.New(nil),
		Logger:  &logger.Logger{Logger: zap.New(core)},
	}

	f := &fixture{
		logs:             logs,
		mr:               mr,
		redis:            rdb,
		pusher:           &recordingPusher{},
		messageRepo:      repository.NewMessageRepository(db),
		conversationRepo: repository.NewConversationRepository(db),
		registry:         redis.NewRegistry(rdb, 0),
		presence:         redis.NewPresenceStore(rdb, nil, 0),
		queue:            redis.NewNotificationQueue(rdb, 0),
	}
	access := proxy.NewAccessControl(f.conversationRepo)

	f.conversations = NewConversationService(f.conversationRepo, access, opts)
	f.messages = NewMessageService(f.messageRepo, access, attachments, opts)
	f.receipts = NewReceiptService(f.messageRepo, access, f.registry, f.pusher, opts)
	f.typing = NewTypingService(f.registry, f.pusher, opts)
	f.connections = NewConnectionService(f.registry, f.presence, opts)
	f.groups = NewGroupService(repository.NewGroupRepository(db), f.conversations, access,
		redis.NewCacheStore(rdb, redis.DefaultCacheConfig()), opts)
	f.notifications = NewNotificationService(f.queue, opts)
	f.delivery = NewDeliveryService(DeliveryDeps{
		Conversations: f.conversations,
		Messages:      f.messages,
		Receipts:      f.receipts,
		Groups:        f.groups,
		Notifications: f.notifications,
		Access:        access,
		Registry:      f.registry,
		Pusher:        f.pusher,
	}, opts)
	return f
}

// connect registers a live connection whose handle is "<user>-conn".
func (f *fixture) connect(t *testing.T, userID string) string {
	t.Helper()
	handle := userID + "-conn"
	require.NoError(t, f.connections.Connect(context.Background(), userID, handle))
	return handle
}
