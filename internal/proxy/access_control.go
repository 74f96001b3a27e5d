package proxy

import (
	"context"
	"fmt"

	"relay-chat/internal/domain/group"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
)

// AccessControl answers membership questions before a service touches a
// conversation or group on a user's behalf.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID string) error {
	ok, err := a.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant of conversation %s", relay_errors.ErrForbidden, conversationID)
	}
	return nil
}

func (a *AccessControl) CanPostToGroup(ctx context.Context, userID string, g group.Group) error {
	if !g.HasMember(userID) {
		return fmt.Errorf("%w: not a member of group %s", relay_errors.ErrForbidden, g.ID)
	}
	return nil
}

func (a *AccessControl) CanManageGroup(ctx context.Context, userID string, g group.Group) error {
	for _, m := range g.Members {
		if m.UserID == userID {
			if m.Role == group.RoleAdmin {
				return nil
			}
			break
		}
	}
	return fmt.Errorf("%w: only group admins can manage group %s", relay_errors.ErrForbidden, g.ID)
}
