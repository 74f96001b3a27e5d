package repository

import (
	"context"
	"errors"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/group"
	relay_errors "relay-chat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresGroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &PostgresGroupRepository{db: db}
}

// Create stores the group, its members and the backing group conversation
// in one transaction.
func (r *PostgresGroupRepository) Create(ctx context.Context, g *group.Group, conv *conversation.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createConversation(tx, conv); err != nil {
			return err
		}
		g.ConversationID = conv.ID
		if err := tx.Omit(clause.Associations).Create(g).Error; err != nil {
			if isUniqueViolation(err) {
				return relay_errors.ErrAlreadyExists
			}
			return err
		}
		for i := range g.Members {
			g.Members[i].GroupID = g.ID
		}
		if len(g.Members) == 0 {
			return nil
		}
		return tx.Create(&g.Members).Error
	})
}

func (r *PostgresGroupRepository) GetByID(ctx context.Context, id string) (group.Group, error) {
	var g group.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC").Order("user_id ASC")
		}).
		Where("id = ?", id).
		First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return group.Group{}, relay_errors.ErrNotFound
		}
		return group.Group{}, err
	}
	return g, nil
}

// AddMember adds userID to the group and to its conversation.
func (r *PostgresGroupRepository) AddMember(ctx context.Context, g group.Group, m *group.Member) error {
	m.GroupID = g.ID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Create(&conversation.Participant{
			ConversationID: g.ConversationID,
			UserID:         m.UserID,
			JoinedAt:       m.JoinedAt,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresGroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&group.Member{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
