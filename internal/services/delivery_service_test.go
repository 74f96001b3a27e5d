package services

import (
	"context"
	"errors"
	"testing"

	"relay-chat/internal/commands"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/notification"
	"relay-chat/internal/events"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMessage(t *testing.T, env events.Envelope) message.Message {
	t.Helper()
	var msg message.Message
	require.NoError(t, env.DecodeData(&msg))
	return msg
}

func TestSend_OfflineReceiverGetsNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceConn := f.connect(t, "alice")

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, message.StatusSent, msg.Status)

	acks := f.pusher.framesFor(aliceConn, events.TypeMessageSent)
	require.Len(t, acks, 1)
	ack := decodeMessage(t, acks[0])
	assert.Equal(t, msg.ID, ack.ID)
	assert.Equal(t, message.StatusSent, ack.Status)

	queued, err := f.notifications.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, notification.KindNewMessage, queued[0].Type)
	assert.Equal(t, "alice", queued[0].SenderID)
	assert.Equal(t, msg.ID, queued[0].MessageID)
	assert.Equal(t, msg.ConversationID, queued[0].ConversationID)
	assert.Equal(t, "hi", queued[0].Content)

	stored, err := f.messageRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusSent, stored.Status)
	assert.Nil(t, stored.DeliveredAt)
}

func TestSend_LogsDeliveryStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "bob")

	_, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: "text",
	})
	require.NoError(t, err)

	var states []string
	for _, entry := range f.logs.All() {
		if state, ok := entry.ContextMap()["state"].(string); ok {
			states = append(states, state)
		}
	}
	assert.Equal(t, []string{
		string(message.StateComposed),
		string(message.StateStored),
		string(message.StateAttemptedDelivery),
		string(message.StateDelivered),
	}, states)
}

func TestSend_SenderWithoutConnectionStillStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "from rest", Type: "text",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Empty(t, f.pusher.pushes)
}

func TestSend_OnlineReceiverThenReadReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceConn := f.connect(t, "alice")
	bobConn := f.connect(t, "bob")

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hey bob", Type: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, message.StatusDelivered, msg.Status)
	assert.NotNil(t, msg.DeliveredAt)

	incoming := f.pusher.framesFor(bobConn, events.TypeNewMessage)
	require.Len(t, incoming, 1)
	got := decodeMessage(t, incoming[0])
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hey bob", got.Content)
	assert.Equal(t, "alice", got.SenderID)

	queued, err := f.notifications.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, queued)

	read, err := f.receipts.MarkRead(ctx, "bob", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusRead, read.Status)
	assert.NotNil(t, read.ReadAt)

	receipts := f.pusher.framesFor(aliceConn, events.TypeMessageRead)
	require.Len(t, receipts, 1)
	var receipt events.ReadReceipt
	require.NoError(t, receipts[0].DecodeData(&receipt))
	assert.Equal(t, events.ReadReceipt{MessageID: msg.ID, ReadBy: "bob"}, receipt)
}

func TestSend_PushFailureQueuesNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "bob")
	f.pusher.err = errors.New("connection gone")

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, message.StatusSent, msg.Status)

	queued, err := f.notifications.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestSend_RejectsInvalidInputBeforeStoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []commands.SendMessageCommand{
		{SenderID: "alice", ReceiverID: "bob", Content: "   ", Type: "text"},
		{SenderID: "alice", Content: "hi", Type: "text"},
		{SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: "sticker"},
		{SenderID: "alice", ReceiverID: "bob", Content: "not json", Type: "image"},
		{SenderID: "alice", ReceiverID: "bob", Content: `{"name":"x.png"}`, Type: "image"},
	}
	for _, cmd := range cases {
		_, err := f.delivery.Send(ctx, cmd)
		assert.ErrorIs(t, err, relay_errors.ErrInvalidInput, "%+v", cmd)
	}

	list, err := f.conversations.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSend_MediaPayloadIsNormalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content := `{"url":"https://cdn.example.com/cat.png","name":"cat.png","size":1024,"mimeType":"image/png"}`
	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: content, Type: "image",
	})
	require.NoError(t, err)
	assert.Equal(t, message.TypeImage, msg.Type)
	assert.Equal(t, content, msg.Content)

	stored, err := f.messageRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	ref, ok := stored.FileReference()
	require.True(t, ok)
	assert.Equal(t, "cat.png", ref.Name)
	assert.JSONEq(t, content, string(stored.Payload))
}

func TestSend_ReplyCarriesSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "lunch?", Type: "text",
	})
	require.NoError(t, err)

	reply, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "bob", ConversationID: first.ConversationID, Content: "sure", Type: "text", ReplyToID: first.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, first.ID, reply.ReplyTo.MessageID)
	assert.Equal(t, "lunch?", reply.ReplyTo.Content)
	assert.Equal(t, "alice", reply.ReplyTo.SenderID)
	require.NotNil(t, reply.ReceiverID)
	assert.Equal(t, "alice", *reply.ReceiverID)

	other, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "carol", Content: "hello", Type: "text",
	})
	require.NoError(t, err)
	_, err = f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "wrong thread", Type: "text", ReplyToID: other.ID,
	})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestSend_SeparatorBearingReceiverStaysPrivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.Resolve(ctx, "a|b", "c", "")
	require.NoError(t, err)

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "a", ReceiverID: "b|c", Content: "secret for b|c", Type: "text",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.ReceiverID)
	assert.Equal(t, "b|c", *msg.ReceiverID)

	history, err := f.messages.History(ctx, HistoryQuery{ConversationID: msg.ConversationID, ViewerID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	_, err = f.messages.History(ctx, HistoryQuery{ConversationID: msg.ConversationID, ViewerID: "c"})
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)
}

func TestSend_UpdatesConversationSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "ping", Type: "text",
	})
	require.NoError(t, err)

	list, err := f.conversations.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, msg.ConversationID, list[0].ID)
	assert.Equal(t, "ping", list[0].LastMessage.Content)
	assert.Equal(t, 1, list[0].UnreadCounts()["bob"])
}

func TestSendGroup_BroadcastsAndQueuesForOfflineMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, CreateGroupInput{CreatorID: "alice", Name: "team", MemberIDs: []string{"bob", "carol"}})
	require.NoError(t, err)
	aliceConn := f.connect(t, "alice")
	f.connect(t, "bob")

	msg, err := f.delivery.SendGroup(ctx, commands.SendGroupMessageCommand{
		SenderID: "alice", GroupID: g.ID, Content: "standup", Type: "text",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.GroupID)
	assert.Equal(t, g.ID, *msg.GroupID)
	assert.Equal(t, g.ConversationID, msg.ConversationID)
	assert.Equal(t, message.StatusDelivered, msg.Status)

	assert.Len(t, f.pusher.framesFor(aliceConn, events.TypeMessageSent), 1)

	require.Len(t, f.pusher.broadcasts, 1)
	b := f.pusher.broadcasts[0]
	assert.Equal(t, g.ID, b.groupID)
	assert.Equal(t, "alice", b.except)
	assert.Equal(t, events.TypeNewGroupMessage, b.frame.Type)

	carol, err := f.notifications.List(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, carol, 1)
	assert.Equal(t, notification.KindNewGroupMessage, carol[0].Type)
	assert.Equal(t, g.ID, carol[0].GroupID)

	bob, err := f.notifications.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)
}

func TestSendGroup_RegisteredMemberCountsAsLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, CreateGroupInput{CreatorID: "alice", Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	require.NoError(t, f.registry.Register(ctx, "bob", "bob-remote"))

	msg, err := f.delivery.SendGroup(ctx, commands.SendGroupMessageCommand{
		SenderID: "alice", GroupID: g.ID, Content: "ship it", Type: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, message.StatusDelivered, msg.Status)

	bob, err := f.notifications.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)
}

func TestSendGroup_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, CreateGroupInput{CreatorID: "alice", Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.delivery.SendGroup(ctx, commands.SendGroupMessageCommand{
		SenderID: "mallory", GroupID: g.ID, Content: "let me in", Type: "text",
	})
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)

	_, err = f.delivery.SendGroup(ctx, commands.SendGroupMessageCommand{
		SenderID: "alice", GroupID: "missing", Content: "hello?", Type: "text",
	})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestSend_RejectsGroupConversationId(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, CreateGroupInput{CreatorID: "alice", Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.delivery.Send(ctx, commands.SendMessageCommand{
		SenderID: "alice", ConversationID: g.ConversationID, Content: "hi", Type: "text",
	})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}
