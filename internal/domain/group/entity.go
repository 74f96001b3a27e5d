package group

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Group represents the groups table
type Group struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Name           string    `gorm:"size:120;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	CreatorID      string    `gorm:"size:64;not null" json:"creatorId"`
	ConversationID string    `gorm:"size:64;not null;uniqueIndex" json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Members []Member `gorm:"foreignKey:GroupID" json:"members"`
}

// Member represents the group_members table
type Member struct {
	GroupID  string    `gorm:"primaryKey;size:64" json:"-"`
	UserID   string    `gorm:"primaryKey;size:64;index" json:"userId"`
	Role     Role      `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (Group) TableName() string {
	return "groups"
}

func (Member) TableName() string {
	return "group_members"
}

func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs lists members in join order.
func (g Group) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
