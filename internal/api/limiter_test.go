package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"waterz/internal/config"
)

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("key:a"))
	assert.True(t, l.allow("key:a"))
	assert.False(t, l.allow("key:a"), "burst exhausted")
	assert.True(t, l.allow("key:b"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.allow("key:a"), "one token refilled")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 5})
	l.now = func() time.Time { return now }

	l.allow("ip:1")
	l.allow("ip:2")
	assert.Equal(t, 2, l.size())

	now = now.Add(clientIdleTTL / 2)
	l.allow("ip:2")

	now = now.Add(clientIdleTTL/2 + time.Second)
	l.allow("ip:3")
	assert.Equal(t, 2, l.size(), "ip:1 idle past the ttl is dropped")
}
