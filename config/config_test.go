package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PRESENCE_TTL", "90s")
	t.Setenv("INSTANCE_ID", "node-a")

	cfg := LoadConfig()
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.PresenceTTL)
	assert.Equal(t, "node-a", cfg.InstanceID)
}

func TestLoadConfig_FallsBackOnBadValues(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("DOWNSTREAM_TIMEOUT", "-1s")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_BUCKET", "")

	cfg := LoadConfig()
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 3*time.Second, cfg.DownstreamTimeout)
	assert.False(t, cfg.AttachmentsEnabled())
}

func TestAttachmentsEnabled(t *testing.T) {
	assert.True(t, (&Config{S3Region: "eu-west-1", S3Bucket: "media"}).AttachmentsEnabled())
	assert.False(t, (&Config{S3Region: "eu-west-1"}).AttachmentsEnabled())
}
