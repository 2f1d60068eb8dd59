package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summarai/internal/config"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "summarai_user")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "summarai_user", `{"email":"a@b.c"}`))
	require.NoError(t, s.Set(ctx, "conv_abc", `[]`))
	require.NoError(t, s.Set(ctx, "conv_xyz", `[{"role":"ai","text":"hi"}]`))

	v, err := s.Get(ctx, "conv_xyz")
	require.NoError(t, err)
	assert.Equal(t, `[{"role":"ai","text":"hi"}]`, v)

	require.NoError(t, s.Set(ctx, "conv_xyz", `[]`))
	v, err = s.Get(ctx, "conv_xyz")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	keys, err := s.Keys(ctx, "conv_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_abc", "conv_xyz"}, keys)

	all, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Remove(ctx, "conv_abc"))
	require.NoError(t, s.Remove(ctx, "conv_never_written"))
	_, err = s.Get(ctx, "conv_abc")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err = s.Keys(ctx, "conv_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_xyz"}, keys)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := OpenFile(path)
	require.NoError(t, err)
	exerciseStore(t, s)

	// reopen and confirm persistence
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, err := reopened.Get(context.Background(), "summarai_user")
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.c"}`, v)
}

func TestFileStoreCorruptedBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := OpenFile(path)
	require.NoError(t, err)

	keys, err := s.Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed storage tests")
	}

	ctx := context.Background()
	prefix := "summarai_test:"
	s, err := OpenRedis(ctx, config.Redis{Addr: addr, KeyPrefix: prefix})
	require.NoError(t, err)
	defer s.Close()

	cleanupRedis(t, s.client, prefix)
	t.Cleanup(func() { cleanupRedis(t, s.client, prefix) })

	exerciseStore(t, s)
}

func cleanupRedis(t *testing.T, client *redis.Client, prefix string) {
	t.Helper()
	ctx := context.Background()
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
	require.NoError(t, iter.Err())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := config.NewConfig()
	cfg.Storage = config.StorageSQLite
	cfg.StoragePath = filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
	assert.False(t, s.Degraded())

	cfg.Storage = "etcd"
	_, err = Open(ctx, cfg, nil)
	assert.Error(t, err)
}
