package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the derived online state of a user
type PresenceStatus struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// PresenceEvent is published on a user's presence channel on every change.
type PresenceEvent struct {
	UserID    string    `json:"userId"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceStore handles presence tracking in Redis
type PresenceStore struct {
	client      goredis.UniversalClient
	publisher   *Publisher
	ttl         time.Duration
	lastSeenTTL time.Duration
	now         func() time.Time
}

// Redis key prefixes for presence
const (
	onlineKeyPrefix   = "online:"
	lastSeenKeyPrefix = "lastseen:"
)

// DefaultPresenceTTL is how long an online marker survives without a heartbeat.
const DefaultPresenceTTL = 5 * time.Minute

// NewPresenceStore creates a new presence store. publisher may be nil.
func NewPresenceStore(client goredis.UniversalClient, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{
		client:      client,
		publisher:   publisher,
		ttl:         ttl,
		lastSeenTTL: DefaultRegistryTTL,
		now:         time.Now,
	}
}

func OnlineKey(userID string) string {
	return onlineKeyPrefix + userID
}

func LastSeenKey(userID string) string {
	return lastSeenKeyPrefix + userID
}

// SetOnline marks a user as online
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	now := p.now().UTC()

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, OnlineKey(userID), "1", p.ttl)
	pipe.Set(ctx, LastSeenKey(userID), now.Unix(), p.lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	p.publishPresenceEvent(ctx, userID, true, now)
	return nil
}

// SetOffline marks a user as offline and records when they were last seen
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	now := p.now().UTC()

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, OnlineKey(userID), "0", p.ttl)
	pipe.Set(ctx, LastSeenKey(userID), now.Unix(), p.lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	p.publishPresenceEvent(ctx, userID, false, now)
	return nil
}

// Heartbeat keeps an online marker from expiring. Offline users stay offline.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	now := p.now().UTC()

	online, err := p.IsOnline(ctx, userID)
	if err != nil || !online {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.Expire(ctx, OnlineKey(userID), p.ttl)
	pipe.Set(ctx, LastSeenKey(userID), now.Unix(), p.lastSeenTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// IsOnline reports true only while the marker exists and reads "1".
// An expired marker means offline.
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	value, err := p.client.Get(ctx, OnlineKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

// GetPresence gets the presence status of a user
func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	statuses, err := p.GetMultiplePresence(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	return statuses[userID], nil
}

// GetMultiplePresence gets presence status for multiple users
func (p *PresenceStore) GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]*PresenceStatus, error) {
	result := make(map[string]*PresenceStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := p.client.Pipeline()
	onlineCmds := make(map[string]*goredis.StringCmd, len(userIDs))
	seenCmds := make(map[string]*goredis.StringCmd, len(userIDs))
	for _, userID := range userIDs {
		onlineCmds[userID] = pipe.Get(ctx, OnlineKey(userID))
		seenCmds[userID] = pipe.Get(ctx, LastSeenKey(userID))
	}

	// Missing keys surface as goredis.Nil on the individual commands.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}

	for _, userID := range userIDs {
		status := &PresenceStatus{UserID: userID}
		if value, err := onlineCmds[userID].Result(); err == nil {
			status.Online = value == "1"
		}
		if raw, err := seenCmds[userID].Result(); err == nil {
			if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
				seen := time.Unix(unix, 0).UTC()
				status.LastSeen = &seen
			}
		}
		result[userID] = status
	}
	return result, nil
}

// publishPresenceEvent publishes a presence change. Failures are not
// reported; subscribers can always fall back to GetPresence.
func (p *PresenceStore) publishPresenceEvent(ctx context.Context, userID string, online bool, timestamp time.Time) {
	if p.publisher == nil {
		return
	}

	data, err := json.Marshal(PresenceEvent{UserID: userID, Online: online, Timestamp: timestamp})
	if err != nil {
		return
	}
	_ = p.publisher.Publish(ctx, PresenceChannel(userID), data)
}
