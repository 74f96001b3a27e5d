package repository

import (
	"context"
	"errors"

	"relay-chat/internal/domain/conversation"
	relay_errors "relay-chat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// Create inserts the conversation together with its participants. A second
// direct conversation for the same pair fails with ErrAlreadyExists.
func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createConversation(tx, c)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func createConversation(tx *gorm.DB, c *conversation.Conversation) error {
	if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
		return err
	}
	for i := range c.Participants {
		c.Participants[i].ConversationID = c.ID
		if c.Participants[i].JoinedAt.IsZero() {
			c.Participants[i].JoinedAt = c.CreatedAt
		}
	}
	if len(c.Participants) == 0 {
		return nil
	}
	return tx.Create(&c.Participants).Error
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id string) (conversation.Conversation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresConversationRepository) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	return r.first(ctx, "direct_key = ?", key)
}

func (r *PostgresConversationRepository) first(ctx context.Context, query string, args ...interface{}) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where(query, args...).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, relay_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error) {
	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var conversations []conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", subQuery).
		Order("updated_at DESC").
		Order("id ASC").
		Limit(clampLimit(limit, ConversationList, ConversationList)).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// UpdateLastMessage overwrites the snapshot unless a newer message already
// holds it.
func (r *PostgresConversationRepository) UpdateLastMessage(ctx context.Context, id string, last conversation.LastMessage) error {
	if last.Timestamp == nil {
		return relay_errors.Invalid("last message timestamp is required")
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Where("last_message_timestamp IS NULL OR last_message_timestamp <= ?", *last.Timestamp).
		Updates(map[string]interface{}{
			"last_message_content":   last.Content,
			"last_message_sender_id": last.SenderID,
			"last_message_timestamp": *last.Timestamp,
			"updated_at":             *last.Timestamp,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&conversation.Conversation{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return relay_errors.ErrNotFound
		}
	}
	return nil
}

func (r *PostgresConversationRepository) IncrementUnread(ctx context.Context, conversationID, userID string) error {
	return r.setUnread(ctx, conversationID, userID, gorm.Expr("unread_count + 1"))
}

func (r *PostgresConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return r.setUnread(ctx, conversationID, userID, 0)
}

func (r *PostgresConversationRepository) setUnread(ctx context.Context, conversationID, userID string, value interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
