package services

import (
	"context"
	"strings"

	"relay-chat/internal/domain/group"
	"relay-chat/internal/proxy"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroupService is the group directory: membership lookups for fan-out and
// the create/add-member operations behind the REST surface.
type GroupService struct {
	repo          repository.GroupRepository
	conversations *ConversationService
	access        *proxy.AccessControl
	cache         GroupCache
	opts          Options
}

// NewGroupService wires the directory. cache may be nil.
func NewGroupService(repo repository.GroupRepository, conversations *ConversationService, access *proxy.AccessControl, cache GroupCache, opts Options) *GroupService {
	return &GroupService{repo: repo, conversations: conversations, access: access, cache: cache, opts: opts.normalized()}
}

type CreateGroupInput struct {
	CreatorID   string
	Name        string
	Description string
	MemberIDs   []string
}

// Create stores a group with its creator as admin and backs it with a group
// conversation holding every member.
func (s *GroupService) Create(ctx context.Context, in CreateGroupInput) (group.Group, error) {
	name := strings.TrimSpace(in.Name)
	if in.CreatorID == "" {
		return group.Group{}, relay_errors.Invalid("creatorId is required")
	}
	if name == "" {
		return group.Group{}, relay_errors.Invalid("name is required")
	}

	now := s.opts.now()
	g := group.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     []group.Member{{UserID: in.CreatorID, Role: group.RoleAdmin, JoinedAt: now}},
	}
	seen := map[string]bool{in.CreatorID: true}
	for _, id := range in.MemberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Members = append(g.Members, group.Member{UserID: id, Role: group.RoleMember, JoinedAt: now})
	}

	conv := s.conversations.NewGroupConversation(g.ID, g.MemberIDs())
	g.ConversationID = conv.ID

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if err := s.repo.Create(callCtx, &g, &conv); err != nil {
		return group.Group{}, relay_errors.Unavailable(err)
	}
	return g, nil
}

// Get returns the directory record, served from cache when possible.
func (s *GroupService) Get(ctx context.Context, groupID string) (group.Group, error) {
	if groupID == "" {
		return group.Group{}, relay_errors.Invalid("groupId is required")
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	if s.cache != nil {
		cached, err := s.cache.GetGroup(callCtx, groupID)
		if err != nil {
			s.opts.Logger.WithContext(ctx).Warn("group cache read failed", zap.String("group_id", groupID), zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	g, err := s.repo.GetByID(callCtx, groupID)
	if err != nil {
		return group.Group{}, relay_errors.Unavailable(err)
	}
	if s.cache != nil {
		if err := s.cache.SetGroup(callCtx, g); err != nil {
			s.opts.Logger.WithContext(ctx).Warn("group cache write failed", zap.String("group_id", groupID), zap.Error(err))
		}
	}
	return g, nil
}

// GetForMember returns the group only to its members.
func (s *GroupService) GetForMember(ctx context.Context, userID, groupID string) (group.Group, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if err := s.access.CanPostToGroup(ctx, userID, g); err != nil {
		return group.Group{}, err
	}
	return g, nil
}

// AddMember lets a group admin add userID as a member.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, userID string) (group.Group, error) {
	if strings.TrimSpace(userID) == "" {
		return group.Group{}, relay_errors.Invalid("userId is required")
	}
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if err := s.access.CanManageGroup(ctx, actorID, g); err != nil {
		return group.Group{}, err
	}

	callCtx, cancel := s.opts.bounded(ctx)
	defer cancel()

	m := &group.Member{GroupID: g.ID, UserID: userID, Role: group.RoleMember, JoinedAt: s.opts.now()}
	if err := s.repo.AddMember(callCtx, g, m); err != nil {
		return group.Group{}, relay_errors.Unavailable(err)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateGroup(callCtx, g.ID); err != nil {
			s.opts.Logger.WithContext(ctx).Warn("group cache invalidation failed", zap.String("group_id", g.ID), zap.Error(err))
		}
	}
	g.Members = append(g.Members, *m)
	return g, nil
}

// IsMember reports directory membership. Unknown groups are ErrNotFound.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.HasMember(userID), nil
}
