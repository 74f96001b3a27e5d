package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relay-chat/internal/domain/message"
	"relay-chat/internal/proxy"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
)

const replyExcerptRunes = 100

// MessageService is the read side of the message store plus the per-user
// mutations (reactions, delete for me) exposed over REST.
type MessageService struct {
	repo        repository.MessageRepository
	access      *proxy.AccessControl
	attachments AttachmentStore
	opts        Options
}

// NewMessageService wires the store. attachments may be nil, which disables
// presigned links.
func NewMessageService(repo repository.MessageRepository, access *proxy.AccessControl, attachments AttachmentStore, opts Options) *MessageService {
	return &MessageService{repo: repo, access: access, attachments: attachments, opts: opts.normalized()}
}

// HistoryQuery selects a page of a conversation for the viewer.
type HistoryQuery struct {
	ConversationID string
	ViewerID       string
	Limit          int
	Before         *time.Time
}

// History returns the newest page before the cursor in ascending order.
func (s *MessageService) History(ctx context.Context, q HistoryQuery) ([]message.Message, error) {
	if q.ConversationID == "" {
		return nil, relay_errors.Invalid("conversationId is required")
	}
	if q.Limit < 0 {
		return nil, relay_errors.Invalid("limit must not be negative")
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if err := s.access.CanViewConversation(callCtx, q.ViewerID, q.ConversationID); err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	msgs, err := s.repo.ListByConversation(callCtx, q.ConversationID, repository.Page{
		Limit:    q.Limit,
		Before:   q.Before,
		ViewerID: q.ViewerID,
	})
	if err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	return msgs, nil
}

// SearchQuery is the REST view of a search. Results are limited to
// conversations the viewer takes part in.
type SearchQuery struct {
	ViewerID       string
	Query          string
	ConversationID string
	SenderID       string
	Type           string
	From           *time.Time
	To             *time.Time
}

func (s *MessageService) Search(ctx context.Context, q SearchQuery) ([]message.Message, error) {
	var t message.Type
	if q.Type != "" {
		parsed, ok := message.ParseType(q.Type)
		if !ok {
			return nil, relay_errors.Invalid("unknown message type %q", q.Type)
		}
		t = parsed
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, relay_errors.Invalid("dateTo must not precede dateFrom")
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	msgs, err := s.repo.Search(callCtx, repository.SearchFilter{
		Query:          strings.TrimSpace(q.Query),
		ConversationID: q.ConversationID,
		SenderID:       q.SenderID,
		Type:           t,
		From:           q.From,
		To:             q.To,
		ViewerID:       q.ViewerID,
		ParticipantID:  q.ViewerID,
		Limit:          repository.SearchLimit,
	})
	if err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	return msgs, nil
}

// Get returns a message visible to userID.
func (s *MessageService) Get(ctx context.Context, userID, messageID string) (message.Message, error) {
	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	msg, err := s.repo.GetByID(callCtx, messageID)
	if err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	if err := s.access.CanViewConversation(callCtx, userID, msg.ConversationID); err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	return msg, nil
}

func (s *MessageService) AddReaction(ctx context.Context, userID, messageID, emoji string) (message.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return message.Message{}, relay_errors.Invalid("emoji is required")
	}
	if _, err := s.Get(ctx, userID, messageID); err != nil {
		return message.Message{}, err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	r := &message.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: s.opts.now()}
	if err := s.repo.AddReaction(callCtx, r); err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	msg, err := s.repo.GetByID(callCtx, messageID)
	return msg, relay_errors.Unavailable(err)
}

func (s *MessageService) RemoveReaction(ctx context.Context, userID, messageID, emoji string) (message.Message, error) {
	if _, err := s.Get(ctx, userID, messageID); err != nil {
		return message.Message{}, err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if err := s.repo.RemoveReaction(callCtx, messageID, userID, emoji); err != nil {
		return message.Message{}, relay_errors.Unavailable(err)
	}
	msg, err := s.repo.GetByID(callCtx, messageID)
	return msg, relay_errors.Unavailable(err)
}

// DeleteForMe hides a message from userID's history only.
func (s *MessageService) DeleteForMe(ctx context.Context, userID, messageID string) error {
	if _, err := s.Get(ctx, userID, messageID); err != nil {
		return err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	return relay_errors.Unavailable(s.repo.DeleteForUser(callCtx, messageID, userID))
}

// GroupReaders lists who has read a group message.
func (s *MessageService) GroupReaders(ctx context.Context, userID, messageID string) ([]message.Receipt, error) {
	msg, err := s.Get(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsGroup() {
		return nil, relay_errors.Invalid("message %s is not a group message", messageID)
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	receipts, err := s.repo.ListReceipts(callCtx, messageID)
	return receipts, relay_errors.Unavailable(err)
}

// AttachmentLink is a download location for a media message.
type AttachmentLink struct {
	URL       string     `json:"url"`
	Name      string     `json:"name,omitempty"`
	MimeType  string     `json:"mimeType,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// AttachmentLink returns the stored url, or a presigned one when the payload
// references an object key.
func (s *MessageService) AttachmentLink(ctx context.Context, userID, messageID string) (AttachmentLink, error) {
	msg, err := s.Get(ctx, userID, messageID)
	if err != nil {
		return AttachmentLink{}, err
	}
	ref, ok := msg.FileReference()
	if !ok {
		return AttachmentLink{}, relay_errors.Invalid("message %s has no attachment", messageID)
	}
	if ref.Key == "" {
		return AttachmentLink{URL: ref.URL, Name: ref.Name, MimeType: ref.MimeType}, nil
	}
	if s.attachments == nil {
		return AttachmentLink{}, fmt.Errorf("%w: attachment storage is not configured", relay_errors.ErrServiceUnavailable)
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	exists, err := s.attachments.Exists(callCtx, ref.Key)
	if err != nil {
		return AttachmentLink{}, relay_errors.Unavailable(err)
	}
	if !exists {
		return AttachmentLink{}, fmt.Errorf("%w: attachment %s", relay_errors.ErrNotFound, ref.Key)
	}
	url, expires, err := s.attachments.PresignGet(callCtx, ref.Key, ref.Name)
	if err != nil {
		return AttachmentLink{}, relay_errors.Unavailable(err)
	}
	return AttachmentLink{URL: url, Name: ref.Name, MimeType: ref.MimeType, ExpiresAt: &expires}, nil
}

// replySnapshot copies the quoted message so replies render without a join.
// The quoted message must belong to the same conversation.
func (s *MessageService) replySnapshot(ctx context.Context, conversationID, replyToID string) (*message.ReplyTo, error) {
	if replyToID == "" {
		return nil, nil
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	quoted, err := s.repo.GetByID(callCtx, replyToID)
	if errors.Is(err, relay_errors.ErrNotFound) {
		return nil, relay_errors.Invalid("replyToId %s does not exist", replyToID)
	}
	if err != nil {
		return nil, relay_errors.Unavailable(err)
	}
	if quoted.ConversationID != conversationID {
		return nil, relay_errors.Invalid("replyToId %s belongs to another conversation", replyToID)
	}
	return &message.ReplyTo{
		MessageID: quoted.ID,
		Content:   quoted.Excerpt(replyExcerptRunes),
		SenderID:  quoted.SenderID,
	}, nil
}

// append persists a new message. The store assigns id, timestamp and the
// initial status.
func (s *MessageService) append(ctx context.Context, msg *message.Message, payload message.Payload) error {
	raw, err := message.EncodePayload(payload)
	if err != nil {
		return relay_errors.Invalid("%v", err)
	}
	msg.Payload = raw

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	return relay_errors.Unavailable(s.repo.Create(callCtx, msg))
}
