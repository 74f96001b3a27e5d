package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Type string

const (
	TypeDirect Type = "direct"
	TypeGroup  Type = "group"
)

// Conversation represents the conversations table
type Conversation struct {
	ID          string      `gorm:"primaryKey;size:64"`
	Type        Type        `gorm:"size:16;not null"`
	DirectKey   *string     `gorm:"size:160;uniqueIndex"`
	GroupID     *string     `gorm:"size:64;index"`
	LastMessage LastMessage `gorm:"embedded;embeddedPrefix:last_message_"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
}

// LastMessage is a denormalized snapshot of the most recent message.
type LastMessage struct {
	Content   string     `gorm:"type:text" json:"content"`
	SenderID  string     `gorm:"size:64" json:"senderId"`
	Timestamp *time.Time `gorm:"index" json:"timestamp"`
}

// Participant represents the participants table
type Participant struct {
	ConversationID string `gorm:"primaryKey;size:64"`
	UserID         string `gorm:"primaryKey;size:64;index"`
	UnreadCount    int    `gorm:"not null;default:0"`
	JoinedAt       time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

// CanonicalPair orders two identities so that (a, b) and (b, a) map to the
// same direct conversation.
func CanonicalPair(a, b string) [2]string {
	pair := []string{a, b}
	sort.Strings(pair)
	return [2]string{pair[0], pair[1]}
}

// DirectKey is the unique lookup key of a canonical pair. Each id is
// length-prefixed before hashing so no two distinct pairs share a key.
func DirectKey(a, b string) string {
	pair := CanonicalPair(a, b)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s%d:%s", len(pair[0]), pair[0], len(pair[1]), pair[1])))
	return hex.EncodeToString(sum[:])
}

// ParticipantIDs returns the member ids sorted.
func (c Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	sort.Strings(ids)
	return ids
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the other member of a direct conversation.
func (c Conversation) Counterpart(userID string) (string, bool) {
	if c.Type != TypeDirect {
		return "", false
	}
	if !c.HasParticipant(userID) {
		return "", false
	}
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p.UserID, true
		}
	}
	return "", false
}

// UnreadCounts maps each participant to their unread counter.
func (c Conversation) UnreadCounts() map[string]int {
	out := make(map[string]int, len(c.Participants))
	for _, p := range c.Participants {
		out[p.UserID] = p.UnreadCount
	}
	return out
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	var groupID string
	if c.GroupID != nil {
		groupID = *c.GroupID
	}
	var last *LastMessage
	if c.LastMessage.Timestamp != nil {
		lm := c.LastMessage
		last = &lm
	}
	return json.Marshal(struct {
		ID           string         `json:"id"`
		Type         Type           `json:"type"`
		GroupID      string         `json:"groupId,omitempty"`
		Participants []string       `json:"participants"`
		LastMessage  *LastMessage   `json:"lastMessage,omitempty"`
		UnreadCount  map[string]int `json:"unreadCount"`
		CreatedAt    time.Time      `json:"createdAt"`
		UpdatedAt    time.Time      `json:"updatedAt"`
	}{
		ID:           c.ID,
		Type:         c.Type,
		GroupID:      groupID,
		Participants: c.ParticipantIDs(),
		LastMessage:  last,
		UnreadCount:  c.UnreadCounts(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	})
}
