package services

import (
	"context"
	"errors"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/proxy"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationService resolves participants to conversations and keeps the
// per-conversation summary current.
type ConversationService struct {
	repo   repository.ConversationRepository
	access *proxy.AccessControl
	opts   Options
}

func NewConversationService(repo repository.ConversationRepository, access *proxy.AccessControl, opts Options) *ConversationService {
	return &ConversationService{repo: repo, access: access, opts: opts.normalized()}
}

// Resolve returns the conversation a direct message belongs to. An explicit
// id is fetched as is; otherwise the sorted pair is looked up and created on
// first use. Concurrent first sends for one pair converge on a single row.
func (s *ConversationService) Resolve(ctx context.Context, senderID, receiverID, explicitID string) (conversation.Conversation, error) {
	if senderID == "" {
		return conversation.Conversation{}, relay_errors.Invalid("senderId is required")
	}

	if explicitID != "" {
		c, err := s.Get(ctx, senderID, explicitID)
		if err != nil {
			return conversation.Conversation{}, err
		}
		return c, nil
	}

	if receiverID == "" {
		return conversation.Conversation{}, relay_errors.Invalid("receiverId or conversationId is required")
	}
	if receiverID == senderID {
		return conversation.Conversation{}, relay_errors.Invalid("receiverId must differ from senderId")
	}

	key := conversation.DirectKey(senderID, receiverID)
	existing, err := s.byDirectKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, relay_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	created := s.newDirect(senderID, receiverID)
	err = s.create(ctx, &created)
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, relay_errors.ErrAlreadyExists):
		s.opts.Logger.WithContext(ctx).Debug("direct conversation created concurrently, using winner",
			zap.String("component", "resolver"),
			zap.String("direct_key", key))
		return s.byDirectKey(ctx, key)
	default:
		return conversation.Conversation{}, err
	}
}

// Get fetches a conversation userID participates in.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (conversation.Conversation, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	c, err := s.repo.GetByID(callCtx, conversationID)
	if err != nil {
		return conversation.Conversation{}, relay_errors.Unavailable(err)
	}
	if !c.HasParticipant(userID) {
		return conversation.Conversation{}, relay_errors.ErrForbidden
	}
	return c, nil
}

func (s *ConversationService) byDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	c, err := s.repo.GetByDirectKey(callCtx, key)
	return c, relay_errors.Unavailable(err)
}

func (s *ConversationService) create(ctx context.Context, c *conversation.Conversation) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	return relay_errors.Unavailable(s.repo.Create(callCtx, c))
}

func (s *ConversationService) newDirect(a, b string) conversation.Conversation {
	now := s.opts.now()
	key := conversation.DirectKey(a, b)
	pair := conversation.CanonicalPair(a, b)
	return conversation.Conversation{
		ID:        uuid.NewString(),
		Type:      conversation.TypeDirect,
		DirectKey: &key,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []conversation.Participant{
			{UserID: pair[0], JoinedAt: now},
			{UserID: pair[1], JoinedAt: now},
		},
	}
}

// NewGroupConversation builds the conversation backing a new group.
func (s *ConversationService) NewGroupConversation(groupID string, memberIDs []string) conversation.Conversation {
	now := s.opts.now()
	participants := make([]conversation.Participant, 0, len(memberIDs))
	for _, id := range memberIDs {
		participants = append(participants, conversation.Participant{UserID: id, JoinedAt: now})
	}
	return conversation.Conversation{
		ID:           uuid.NewString(),
		Type:         conversation.TypeGroup,
		GroupID:      &groupID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: participants,
	}
}

// ListForUser returns the user's conversations, newest activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	list, err := s.repo.ListForUser(callCtx, userID, repository.ConversationList)
	if err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	return list, nil
}

// RecordMessage overwrites the summary with msg and, for direct
// conversations, bumps the receiver's unread counter.
func (s *ConversationService) RecordMessage(ctx context.Context, c conversation.Conversation, msg message.Message) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	ts := msg.CreatedAt
	last := conversation.LastMessage{Content: msg.Content, SenderID: msg.SenderID, Timestamp: &ts}
	if err := s.repo.UpdateLastMessage(callCtx, c.ID, last); err != nil {
		return relay_errors.Unavailable(err)
	}

	if c.Type != conversation.TypeDirect {
		return nil
	}
	receiverID, ok := c.Counterpart(msg.SenderID)
	if !ok {
		return nil
	}
	return relay_errors.Unavailable(s.repo.IncrementUnread(callCtx, c.ID, receiverID))
}

// MarkConversationRead clears userID's unread counter.
func (s *ConversationService) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if err := s.access.CanViewConversation(callCtx, userID, conversationID); err != nil {
		return relay_errors.Unavailable(err)
	}
	return relay_errors.Unavailable(s.repo.ResetUnread(callCtx, conversationID, userID))
}
