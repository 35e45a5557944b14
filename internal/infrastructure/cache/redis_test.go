package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*RedisThreadCache, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisThreadCache(client, ttl), client, s
}

func snapshot(ids ...string) []domain.Comment {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	comments := make([]domain.Comment, 0, len(ids))
	for _, id := range ids {
		comments = append(comments, domain.Comment{
			ID:            id,
			ArticleID:     "a1",
			Content:       "content " + id,
			AncestorChain: []string{},
			CreatedAt:     at,
			UpdatedAt:     at,
		})
	}
	return comments
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestRedisThreadCache_GetMiss(t *testing.T) {
	c, _, _ := setupTestCache(t, time.Minute)

	_, err := c.Get(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisThreadCache_SetGet(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	want := snapshot("1", "2")
	want[1].AncestorChain = []string{"1"}
	require.NoError(t, c.Set(ctx, "a1", want))

	got, err := c.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, s.Exists("thread:a1"))
}

func TestRedisThreadCache_SetEmpty(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a1", nil))

	raw, err := s.Get("thread:a1")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	got, err := c.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisThreadCache_Expires(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a1", snapshot("1")))
	assert.Equal(t, time.Minute, s.TTL("thread:a1"))

	s.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisThreadCache_CorruptSnapshot(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)

	require.NoError(t, s.Set("thread:a1", "{not json"))

	_, err := c.Get(context.Background(), "a1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisThreadCache_Update(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a1", snapshot("1")))
	s.FastForward(30 * time.Second)

	err := c.Update(ctx, "a1", func(comments []domain.Comment) ([]domain.Comment, error) {
		return append(comments, snapshot("2")...), nil
	})
	require.NoError(t, err)

	got, err := c.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, snapshot("1", "2"), got)
	assert.Equal(t, time.Minute, s.TTL("thread:a1"))
}

func TestRedisThreadCache_UpdateMiss(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)

	called := false
	err := c.Update(context.Background(), "a1", func(comments []domain.Comment) ([]domain.Comment, error) {
		called = true
		return comments, nil
	})
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.False(t, called)
	assert.False(t, s.Exists("thread:a1"))
}

func TestRedisThreadCache_UpdateFnError(t *testing.T) {
	c, _, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a1", snapshot("1")))

	boom := errors.New("boom")
	err := c.Update(ctx, "a1", func([]domain.Comment) ([]domain.Comment, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := c.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, snapshot("1"), got)
}

func TestRedisThreadCache_UpdateContention(t *testing.T) {
	c, client, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a1", snapshot("1")))

	attempts := 0
	err := c.Update(ctx, "a1", func(comments []domain.Comment) ([]domain.Comment, error) {
		attempts++
		// A concurrent writer touches the watched key on every attempt.
		require.NoError(t, client.Set(ctx, "thread:a1", `[]`, 0).Err())
		return comments, nil
	})
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, updateRetries, attempts)
	assert.False(t, s.Exists("thread:a1"))
}

func TestRedisThreadCache_Invalidate(t *testing.T) {
	c, _, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a1", snapshot("1")))
	require.NoError(t, c.Set(ctx, "a2", snapshot("9")))

	require.NoError(t, c.Invalidate(ctx, "a1"))
	require.NoError(t, c.Invalidate(ctx, "missing"))

	assert.False(t, s.Exists("thread:a1"))
	assert.True(t, s.Exists("thread:a2"))
}
