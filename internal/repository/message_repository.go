package repository

import (
	"context"
	"errors"
	"time"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) now() time.Time {
	if r.db.NowFunc != nil {
		return r.db.NowFunc()
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create assigns identity and creation time, then persists m. The stored
// record starts at status sent.
func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	m.Status = message.StatusSent

	res := r.db.WithContext(ctx).Omit(clause.Associations).Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return relay_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, relay_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// UpdateStatus moves the message to status only when its current status
// ranks lower. The returned bool reports whether the row changed; the
// returned record is the stored state either way.
func (r *PostgresMessageRepository) UpdateStatus(ctx context.Context, id string, status message.Status, at time.Time) (message.Message, bool, error) {
	predecessors := status.Predecessors()
	if len(predecessors) == 0 {
		m, err := r.GetByID(ctx, id)
		return m, false, err
	}

	updates := map[string]interface{}{"status": status}
	switch status {
	case message.StatusDelivered:
		updates["delivered_at"] = at
	case message.StatusRead:
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", at)
		updates["read_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status IN ?", id, predecessors).
		Updates(updates)
	if res.Error != nil {
		return message.Message{}, false, res.Error
	}

	m, err := r.GetByID(ctx, id)
	if err != nil {
		return message.Message{}, false, err
	}
	return m, res.RowsAffected > 0, nil
}

// ListByConversation returns the newest page.Limit messages older than the
// cursor, oldest first.
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID string, page Page) ([]message.Message, error) {
	limit := clampLimit(page.Limit, DefaultPageLimit, MaxPageLimit)

	q := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("conversation_id = ?", conversationID)
	if page.Before != nil {
		q = q.Where("created_at < ?", page.Before.UTC())
	}
	if page.ViewerID != "" {
		q = q.Where("id NOT IN (?)", r.deletedFor(page.ViewerID))
	}

	var messages []message.Message
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresMessageRepository) Search(ctx context.Context, filter SearchFilter) ([]message.Message, error) {
	q := r.db.WithContext(ctx).Preload("Reactions")

	if filter.Query != "" {
		q = q.Where(`LOWER(content) LIKE ? ESCAPE '\'`, containsPattern(filter.Query))
	}
	if filter.ConversationID != "" {
		q = q.Where("conversation_id = ?", filter.ConversationID)
	}
	if filter.SenderID != "" {
		q = q.Where("sender_id = ?", filter.SenderID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", filter.To.UTC())
	}
	if filter.ViewerID != "" {
		q = q.Where("id NOT IN (?)", r.deletedFor(filter.ViewerID))
	}
	if filter.ParticipantID != "" {
		q = q.Where("conversation_id IN (?)", r.db.Model(&conversation.Participant{}).
			Select("conversation_id").
			Where("user_id = ?", filter.ParticipantID))
	}

	var messages []message.Message
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(filter.Limit, SearchLimit, SearchLimit)).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) deletedFor(userID string) *gorm.DB {
	return r.db.Model(&message.Deletion{}).
		Select("message_id").
		Where("user_id = ?", userID)
}

func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.Reaction) error {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = r.now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction).Error
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&message.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

// DeleteForUser hides a message from userID's history. The message itself
// is never removed.
func (r *PostgresMessageRepository) DeleteForUser(ctx context.Context, messageID, userID string) error {
	marker := message.Deletion{MessageID: messageID, UserID: userID, DeletedAt: r.now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&marker).Error
}

// RecordReceipt stores the first read of a group message by userID. It
// reports false when the reader already had a receipt.
func (r *PostgresMessageRepository) RecordReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	receipt := message.Receipt{MessageID: messageID, UserID: userID, ReadAt: at}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) ListReceipts(ctx context.Context, messageID string) ([]message.Receipt, error) {
	var receipts []message.Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
