package conversation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey("bob", "alice"), DirectKey("alice", "bob"))
	assert.Equal(t, [2]string{"alice", "bob"}, CanonicalPair("bob", "alice"))
	assert.NotEqual(t, DirectKey("alice", "bob"), DirectKey("alice", "carol"))
}

func TestDirectKey_SeparatorsInIDsDoNotCollide(t *testing.T) {
	assert.NotEqual(t, DirectKey("a|b", "c"), DirectKey("a", "b|c"))
	assert.NotEqual(t, DirectKey("a:b", "c"), DirectKey("a", "b:c"))
	assert.NotEqual(t, DirectKey("1:a", "b"), DirectKey("1", "a:b"))
	assert.Len(t, DirectKey("alice", "bob"), 64)
}

func TestCounterpart(t *testing.T) {
	key := DirectKey("alice", "bob")
	c := Conversation{
		Type:      TypeDirect,
		DirectKey: &key,
		Participants: []Participant{
			{UserID: "alice"}, {UserID: "bob"},
		},
	}

	other, ok := c.Counterpart("alice")
	require.True(t, ok)
	assert.Equal(t, "bob", other)
	other, ok = c.Counterpart("bob")
	require.True(t, ok)
	assert.Equal(t, "alice", other)

	_, ok = c.Counterpart("carol")
	assert.False(t, ok)

	c.Type = TypeGroup
	_, ok = c.Counterpart("alice")
	assert.False(t, ok)
}

func TestMarshalJSON(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Conversation{
		ID:   "c1",
		Type: TypeDirect,
		Participants: []Participant{
			{UserID: "bob", UnreadCount: 2}, {UserID: "alice"},
		},
	}

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []interface{}{"alice", "bob"}, out["participants"])
	assert.NotContains(t, out, "lastMessage")
	assert.NotContains(t, out, "groupId")
	assert.Equal(t, map[string]interface{}{"alice": float64(0), "bob": float64(2)}, out["unreadCount"])

	c.LastMessage = LastMessage{Content: "hi", SenderID: "alice", Timestamp: &ts}
	raw, err = json.Marshal(c)
	require.NoError(t, err)
	out = nil
	require.NoError(t, json.Unmarshal(raw, &out))
	last, ok := out["lastMessage"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hi", last["content"])
	assert.Equal(t, "2026-01-02T03:04:05Z", last["timestamp"])
}
