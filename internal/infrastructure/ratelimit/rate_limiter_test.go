package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiterWithPolicies(map[string]Policy{
		ActionSendMessage: {Every: time.Minute, Burst: 2},
	})

	ok, _ := rl.Allow("uid-alice", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("uid-alice", ActionSendMessage)
	assert.True(t, ok)

	ok, wait := rl.Allow("uid-alice", ActionSendMessage)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}

func TestRateLimiter_BucketsAreIndependent(t *testing.T) {
	rl := NewRateLimiterWithPolicies(map[string]Policy{
		ActionSendMessage: {Every: time.Minute, Burst: 1},
	})

	ok, _ := rl.Allow("uid-alice", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("uid-bob", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("uid-alice", ActionOpenChat)
	assert.True(t, ok)
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithPolicies(map[string]Policy{
		ActionUpload: {Every: time.Second, Burst: 1},
	})
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("uid-alice", ActionUpload)
	assert.True(t, ok)
	ok, _ = rl.Allow("uid-alice", ActionUpload)
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = rl.Allow("uid-alice", ActionUpload)
	assert.True(t, ok)
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	rl.Allow("uid-alice", ActionSendMessage)
	now = now.Add(2 * time.Hour)
	rl.Cleanup()

	assert.Empty(t, rl.buckets)
}
