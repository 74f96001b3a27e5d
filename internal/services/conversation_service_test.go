package services

import (
	"context"
	"sync"
	"testing"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_IsOrderIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ab, err := f.conversations.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)
	ba, err := f.conversations.Resolve(ctx, "bob", "alice", "")
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, conversation.TypeDirect, ab.Type)
	assert.Equal(t, []string{"alice", "bob"}, ba.ParticipantIDs())
}

func TestResolve_SeparatorBearingIDsGetDistinctConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.conversations.Resolve(ctx, "a|b", "c", "")
	require.NoError(t, err)
	second, err := f.conversations.Resolve(ctx, "a", "b|c", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{"a|b", "c"}, first.ParticipantIDs())
	assert.Equal(t, []string{"a", "b|c"}, second.ParticipantIDs())

	other, ok := second.Counterpart("a")
	require.True(t, ok)
	assert.Equal(t, "b|c", other)
}

func TestResolve_RejectsInvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.Resolve(ctx, "alice", "alice", "")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, err = f.conversations.Resolve(ctx, "alice", "", "")
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, err = f.conversations.Resolve(ctx, "alice", "", "no-such-conversation")
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestResolve_ExplicitConversationRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)

	got, err := f.conversations.Resolve(ctx, "bob", "", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = f.conversations.Resolve(ctx, "mallory", "", conv.ID)
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)
}

func TestResolve_ConcurrentFirstSendsConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, receiver := "alice", "bob"
			if i%2 == 1 {
				sender, receiver = receiver, sender
			}
			conv, err := f.conversations.Resolve(ctx, sender, receiver, "")
			ids[i], errs[i] = conv.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	list, err := f.conversations.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordMessage_TracksSummaryAndUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.Resolve(ctx, "alice", "bob", "")
	require.NoError(t, err)

	msg := message.Message{ConversationID: conv.ID, SenderID: "alice", Type: message.TypeText, Content: "hello"}
	require.NoError(t, f.messageRepo.Create(ctx, &msg))
	require.NoError(t, f.conversations.RecordMessage(ctx, conv, msg))

	got, err := f.conversations.Get(ctx, "bob", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.LastMessage.Content)
	assert.Equal(t, "alice", got.LastMessage.SenderID)
	assert.Equal(t, 1, got.UnreadCounts()["bob"])
	assert.Equal(t, 0, got.UnreadCounts()["alice"])

	require.NoError(t, f.conversations.MarkConversationRead(ctx, "bob", conv.ID))
	got, err = f.conversations.Get(ctx, "bob", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCounts()["bob"])

	err = f.conversations.MarkConversationRead(ctx, "mallory", conv.ID)
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)
}
