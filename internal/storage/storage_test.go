package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-storefront/pkg/config"
)

// exerciseKV runs the contract every backend must satisfy.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, KeySession)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, KeySession, []byte(`{"access":"a1"}`)))
	got, err := kv.Get(ctx, KeySession)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access":"a1"}`, string(got))

	require.NoError(t, kv.Set(ctx, KeySession, []byte(`{"access":"a2"}`)))
	got, err = kv.Get(ctx, KeySession)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access":"a2"}`, string(got))

	require.NoError(t, kv.Delete(ctx, KeySession))
	_, err = kv.Get(ctx, KeySession)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(ctx, KeyCartSnapshot), "deleting a missing key is fine")
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	kv, err := NewFile(path, "alice")
	require.NoError(t, err)
	exerciseKV(t, kv)

	t.Run("namespaces are isolated and survive reopen", func(t *testing.T) {
		ctx := context.Background()
		alice, err := NewFile(path, "alice")
		require.NoError(t, err)
		bob, err := NewFile(path, "bob")
		require.NoError(t, err)

		require.NoError(t, alice.Set(ctx, KeySession, []byte(`"alice"`)))
		_, err = bob.Get(ctx, KeySession)
		require.ErrorIs(t, err, ErrNotFound)

		reopened, err := NewFile(path, "alice")
		require.NoError(t, err)
		got, err := reopened.Get(ctx, KeySession)
		require.NoError(t, err)
		assert.Equal(t, `"alice"`, string(got))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	kv, err := NewRedis(context.Background(), addr, "storefront-test")
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, config.Storage{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(ctx, config.Storage{Driver: "file", Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, kv)

	_, err = Open(ctx, config.Storage{Driver: "redis"})
	assert.Error(t, err, "redis without address")

	_, err = Open(ctx, config.Storage{Driver: "etcd"})
	assert.Error(t, err)
}
