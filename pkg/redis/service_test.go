package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisServiceWithClient(client), mr
}

func TestAppendListTrimmedKeepsNewest(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	key := svc.GenerateKey(CALL_TURNS, "CA1")

	n, err := svc.AppendListTrimmed(ctx, key, []string{"a", "b", "c"}, 4, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = svc.AppendListTrimmed(ctx, key, []string{"d", "e"}, 4, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	vals, err := svc.GetList(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "e"}, vals)
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestGetListMissingKey(t *testing.T) {
	svc, _ := newTestService(t)
	vals, err := svc.GetList(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestSetValueIfAbsent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.SetValueIfAbsent(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetValueIfAbsent(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := svc.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	require.NoError(t, svc.DelValue(ctx, "k"))
	_, err = svc.GetValue(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotExist)
}

func TestHashFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetHashFields(ctx, "h", time.Minute, map[string]string{"welcomed": "1"}))
	require.NoError(t, svc.SetHashFields(ctx, "h", time.Minute, map[string]string{"recording": "in-progress"}))

	got, err := svc.GetHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"welcomed": "1", "recording": "in-progress"}, got)
}
