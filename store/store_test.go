package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/core"
)

// exercise 对任意 KeyValueStore 跑同一组读写检查。
func exercise(t *testing.T, kv core.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, kv.Set(ctx, "run/1", []byte("a")))
	got, err := kv.Get(ctx, "run/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	require.NoError(t, kv.BatchSet(ctx, map[string][]byte{
		"run/1/BDT":    []byte("b"),
		"run/1/Fisher": []byte("c"),
	}))
	got, err = kv.Get(ctx, "run/1/Fisher")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)

	require.NoError(t, kv.ZAdd(ctx, "rank", 0.91, "BDT"))
	require.NoError(t, kv.ZAdd(ctx, "rank", 0.80, "Fisher"))
	require.NoError(t, kv.ZAdd(ctx, "rank", 0.95, "BDTG"))
	require.NoError(t, kv.ZAdd(ctx, "rank", -0.5, "Cuts"))
	names, err := kv.ZRange(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"BDTG", "BDT", "Fisher", "Cuts"}, names)
	names, err = kv.ZRange(ctx, "rank", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"BDT", "Fisher"}, names)

	// 前缀相同的 key 互不影响
	require.NoError(t, kv.ZAdd(ctx, "rank2", 1, "other"))
	names, err = kv.ZRange(ctx, "rank", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BDTG"}, names)

	require.NoError(t, kv.HSet(ctx, "summary", "BDT", []byte(`{"status":"ok"}`)))
	require.NoError(t, kv.HSet(ctx, "summary", "MLP", []byte(`{"status":"failed"}`)))
	all, err := kv.HGetAll(ctx, "summary")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"BDT": []byte(`{"status":"ok"}`),
		"MLP": []byte(`{"status":"failed"}`),
	}, all)

	empty, err := kv.HGetAll(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exercise(t, s)
	assert.Len(t, s.Keys(), 3)
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.ZAdd(context.Background(), "rank", 0.7, "Fisher"))
	require.NoError(t, s.Close())

	s, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	names, err := s.ZRange(context.Background(), "rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fisher"}, names)
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v")), context.Canceled)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MVAKIT_TEST_REDIS")
	if addr == "" {
		t.Skip("MVAKIT_TEST_REDIS not set")
	}
	s, err := NewRedisStore(context.Background(), addr, 15)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.client.FlushDB(context.Background()).Err())
	exercise(t, s)
}
