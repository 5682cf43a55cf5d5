package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/domain"
)

var (
	_ SessionCache = (*MemorySessionCache)(nil)
	_ SessionCache = (*RedisSessionCache)(nil)
)

func sampleSession() *domain.AssistantSession {
	return &domain.AssistantSession{
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Turns: []domain.ChatTurn{
			{Role: "user", Text: "context"},
			{Role: "model", Text: "hello"},
		},
	}
}

func TestMemorySessionCacheExpires(t *testing.T) {
	c := NewMemorySessionCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sampleSession(), time.Minute))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Turns, 2)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySessionCacheReturnsCopies(t *testing.T) {
	c := NewMemorySessionCache()
	ctx := context.Background()
	session := sampleSession()
	require.NoError(t, c.Set(ctx, "k", session, 0))

	session.Turns[0].Text = "mutated"
	got, _, _ := c.Get(ctx, "k")
	got.Turns = append(got.Turns, domain.ChatTurn{Role: "user", Text: "extra"})

	again, ok, _ := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "context", again.Turns[0].Text)
	assert.Len(t, again.Turns, 2)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisSessionCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("STOCKPILOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set STOCKPILOT_TEST_REDIS_ADDR to run redis integration test")
	}
	c := NewRedisSessionCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := "it-" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, c.Set(ctx, key, sampleSession(), time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Turns[1].Text)

	require.NoError(t, c.Delete(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
