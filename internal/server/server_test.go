package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"relay-chat/config"
	"relay-chat/internal/commands"
	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/group"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/notification"
	"relay-chat/internal/handler"
	"relay-chat/internal/proxy"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"
	"relay-chat/internal/services"
	"relay-chat/internal/testutil"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "rest-test-secret"

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func newTestServer(t *testing.T, limits redis.RateLimitConfig) *Server {
	t.Helper()

	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)
	opts := services.Options{Timeout: 5 * time.Second}

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	access := proxy.NewAccessControl(conversationRepo)
	registry := redis.NewRegistry(rdb, 0)
	hub := websocket.NewHub()
	dispatcher := websocket.NewDispatcher(hub, redis.NewPublisher(rdb))

	conversations := services.NewConversationService(conversationRepo, access, opts)
	messages := services.NewMessageService(messageRepo, access, nil, opts)
	receipts := services.NewReceiptService(messageRepo, access, registry, dispatcher, opts)
	typing := services.NewTypingService(registry, dispatcher, opts)
	connections := services.NewConnectionService(registry, redis.NewPresenceStore(rdb, nil, 0), opts)
	notifications := services.NewNotificationService(redis.NewNotificationQueue(rdb, 0), opts)
	groups := services.NewGroupService(repository.NewGroupRepository(db), conversations, access, redis.NewCacheStore(rdb, redis.DefaultCacheConfig()), opts)
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

	cfg := &config.Config{AppMode: TestMode, AppPort: "0", JWTSecret: testSecret}
	auth := services.NewAuthService(cfg)
	limiter := redis.NewRateLimiter(rdb, limits)

	srv := New(cfg, logger.NewNop())
	srv.SetupRoutes(&Handlers{
		Messages:      handler.NewMessageHandler(delivery, messages, receipts),
		Conversations: handler.NewConversationHandler(conversations),
		Groups:        handler.NewGroupHandler(groups),
		Presence:      handler.NewPresenceHandler(connections),
		Notifications: handler.NewNotificationHandler(notifications),
		WebSocket: websocket.NewHandler(websocket.HandlerDeps{
			Auth:        auth,
			Hub:         hub,
			Bus:         bus,
			Connections: connections,
			Limiter:     limiter,
		}),
	}, auth, limiter, Backends{DB: db, Redis: rdb})
	return srv
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, services.AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// call performs a request as userID (anonymous when empty) and decodes the
// envelope into out when out is not nil.
func call(t *testing.T, srv *Server, method, path, userID string, body interface{}, out interface{}) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestPingAndHealth(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/ping", "", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health", "", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/metrics", "", nil, nil))
}

func TestV1_RequiresBearerToken(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var resp envelope[any]
	code := call(t, srv, http.MethodGet, "/v1/conversations", "", nil, &resp)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
}

func TestSendMessage_OfflineReceiverFlow(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var sent envelope[message.Message]
	code := call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "bob", "content": "hello bob"}, &sent)
	require.Equal(t, http.StatusCreated, code, sent.Error)
	assert.Equal(t, message.StatusSent, sent.Data.Status)
	assert.Equal(t, "alice", sent.Data.SenderID)
	convID := sent.Data.ConversationID

	var queued envelope[[]notification.Notification]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/notifications?peek=true", "bob", nil, &queued))
	require.Len(t, queued.Data, 1)
	assert.Equal(t, sent.Data.ID, queued.Data[0].MessageID)

	var drained envelope[[]notification.Notification]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/notifications", "bob", nil, &drained))
	assert.Len(t, drained.Data, 1)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/notifications", "bob", nil, &drained))
	assert.Empty(t, drained.Data)

	var convs envelope[[]json.RawMessage]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/conversations", "bob", nil, &convs))
	require.Len(t, convs.Data, 1)
	var summary struct {
		ID          string                    `json:"id"`
		LastMessage *conversation.LastMessage `json:"lastMessage"`
		UnreadCount map[string]int            `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(convs.Data[0], &summary))
	assert.Equal(t, convID, summary.ID)
	require.NotNil(t, summary.LastMessage)
	assert.Equal(t, "hello bob", summary.LastMessage.Content)
	assert.Equal(t, 1, summary.UnreadCount["bob"])

	var history envelope[[]message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/"+convID+"?limit=10", "bob", nil, &history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, sent.Data.ID, history.Data[0].ID)

	var read envelope[message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/v1/messages/"+sent.Data.ID+"/status", "bob",
		map[string]string{"status": "read"}, &read))
	assert.Equal(t, message.StatusRead, read.Data.Status)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/v1/conversations/"+convID+"/read", "bob", nil, nil))
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/conversations/bob", "bob", nil, &convs))
	require.NoError(t, json.Unmarshal(convs.Data[0], &summary))
	assert.Equal(t, 0, summary.UnreadCount["bob"])
}

func TestSendMessage_Errors(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var resp envelope[any]
	code := call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "alice", "content": "me"}, &resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", resp.Code)

	code = call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "bob"}, &resp)
	assert.Equal(t, http.StatusBadRequest, code)

	code = call(t, srv, http.MethodPut, "/v1/messages/missing/status", "alice",
		map[string]string{"status": "read"}, &resp)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Code)

	code = call(t, srv, http.MethodGet, "/v1/conversations/bob", "alice", nil, &resp)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", resp.Code)

	code = call(t, srv, http.MethodGet, "/v1/messages/search?dateFrom=yesterday", "alice", nil, &resp)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistory_HidesOtherConversations(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var sent envelope[message.Message]
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "bob", "content": "private"}, &sent))

	var resp envelope[any]
	code := call(t, srv, http.MethodGet, "/v1/messages/"+sent.Data.ConversationID, "mallory", nil, &resp)
	assert.Equal(t, http.StatusForbidden, code)

	var found envelope[[]message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/search?query=priv", "mallory", nil, &found))
	assert.Empty(t, found.Data)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/search?query=priv", "bob", nil, &found))
	assert.Len(t, found.Data, 1)
}

func TestReactionsAndDeleteForMe(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var sent envelope[message.Message]
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "bob", "content": "react to me"}, &sent))
	id := sent.Data.ID

	var reacted envelope[message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/v1/messages/"+id+"/reactions", "bob",
		map[string]string{"emoji": "👍"}, &reacted))
	require.Len(t, reacted.Data.Reactions, 1)
	assert.Equal(t, "bob", reacted.Data.Reactions[0].UserID)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodDelete, "/v1/messages/"+id+"/reactions/"+url.PathEscape("👍"), "bob", nil, &reacted))
	assert.Empty(t, reacted.Data.Reactions)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodDelete, "/v1/messages/"+id, "bob", nil, nil))

	var history envelope[[]message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/"+sent.Data.ConversationID, "bob", nil, &history))
	assert.Empty(t, history.Data)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/"+sent.Data.ConversationID, "alice", nil, &history))
	assert.Len(t, history.Data, 1)
}

func TestAttachment_StorageDisabled(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var sent envelope[message.Message]
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiverId": "bob", "type": "image", "content": `{"key":"uploads/cat.png","name":"cat.png"}`}, &sent))

	var resp envelope[any]
	code := call(t, srv, http.MethodGet, "/v1/messages/"+sent.Data.ID+"/attachment", "bob", nil, &resp)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "DOWNSTREAM_UNAVAILABLE", resp.Code)
}

func TestGroups_CreateAddMemberAndSend(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var created envelope[group.Group]
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/groups", "alice",
		map[string]interface{}{"name": "crew", "memberIds": []string{"bob"}}, &created))
	groupID := created.Data.ID
	require.Len(t, created.Data.Members, 2)

	var resp envelope[any]
	code := call(t, srv, http.MethodPost, "/v1/groups/"+groupID+"/members", "bob",
		map[string]string{"userId": "carol"}, &resp)
	assert.Equal(t, http.StatusForbidden, code)

	var updated envelope[group.Group]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/v1/groups/"+groupID+"/members", "alice",
		map[string]string{"userId": "carol"}, &updated))
	assert.Len(t, updated.Data.Members, 3)

	code = call(t, srv, http.MethodPost, "/v1/groups/"+groupID+"/members", "alice",
		map[string]string{"userId": "carol"}, &resp)
	assert.Equal(t, http.StatusConflict, code)

	code = call(t, srv, http.MethodGet, "/v1/groups/"+groupID, "mallory", nil, &resp)
	assert.Equal(t, http.StatusForbidden, code)

	var sent envelope[message.Message]
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/messages/group", "carol",
		map[string]string{"groupId": groupID, "content": "hi all"}, &sent))
	require.NotNil(t, sent.Data.GroupID)
	assert.Equal(t, groupID, *sent.Data.GroupID)

	var queued envelope[[]notification.Notification]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/notifications", "alice", nil, &queued))
	require.Len(t, queued.Data, 1)
	assert.Equal(t, groupID, queued.Data[0].GroupID)

	var readBy envelope[message.Message]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/v1/messages/"+sent.Data.ID+"/status", "bob",
		map[string]string{"status": "read"}, &readBy))

	var readers envelope[[]message.Receipt]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/messages/"+sent.Data.ID+"/readers", "carol", nil, &readers))
	require.Len(t, readers.Data, 1)
	assert.Equal(t, "bob", readers.Data[0].UserID)
}

func TestPresence_OfflineByDefault(t *testing.T) {
	srv := newTestServer(t, redis.DefaultRateLimitConfig())

	var resp envelope[redis.PresenceStatus]
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/v1/presence/bob", "alice", nil, &resp))
	assert.Equal(t, "bob", resp.Data.UserID)
	assert.False(t, resp.Data.Online)
	assert.Nil(t, resp.Data.LastSeen)
}

func TestSendMessage_RateLimited(t *testing.T) {
	limits := redis.DefaultRateLimitConfig()
	limits.MessageLimit = 1
	srv := newTestServer(t, limits)

	body := map[string]string{"receiverId": "bob", "content": "one"}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/messages", "alice", body, nil))

	var resp envelope[any]
	code := call(t, srv, http.MethodPost, "/v1/messages", "alice", body, &resp)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMITED", resp.Code)
}
