package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/transitauth/internal/client/storage"
)

func newTestStorage(t *testing.T, dbPath, server string) *Storage {
	t.Helper()
	store, err := New(context.Background(), dbPath, server)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorage_SaveGetDeleteAuth(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t, filepath.Join(t.TempDir(), "client.db"), "http://localhost:8080")

	auth := &storage.AuthData{
		Email:       "ann@example.com",
		Role:        "DRIVER",
		UserID:      42,
		AccessToken: "access-token",
		Remember:    true,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, *auth, *got)

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Истекший токен хранится, но сессией не считается
	auth.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, store.SaveAuth(ctx, auth))

	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteAuth(ctx))

	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	// Повторное удаление возвращает ErrAuthNotFound
	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrAuthNotFound)
}

func TestStorage_SessionsPerServer(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "client.db")
	expires := time.Now().Add(time.Hour).Unix()

	prod, err := New(ctx, dbPath, "https://auth.example.com")
	require.NoError(t, err)
	require.NoError(t, prod.SaveAuth(ctx, &storage.AuthData{Email: "prod@example.com", ExpiresAt: expires}))
	require.NoError(t, prod.Close())

	// bbolt держит эксклюзивную блокировку файла, открываем по очереди
	staging, err := New(ctx, dbPath, "https://staging.example.com")
	require.NoError(t, err)

	_, err = staging.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	require.NoError(t, staging.SaveAuth(ctx, &storage.AuthData{Email: "stage@example.com", ExpiresAt: expires}))
	require.NoError(t, staging.DeleteAuth(ctx))
	require.NoError(t, staging.Close())

	prod = newTestStorage(t, dbPath, "https://auth.example.com/")
	got, err := prod.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prod@example.com", got.Email)
}

func TestStorage_IsAuthenticated_NoSession(t *testing.T) {
	store := newTestStorage(t, filepath.Join(t.TempDir(), "client.db"), "http://a")

	ok, err := store.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t, filepath.Join(t.TempDir(), "client.db"), "http://a")

	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketSessions)
	}))

	tests := []struct {
		call func() error
		name string
	}{
		{name: "save", call: func() error { return store.SaveAuth(ctx, &storage.AuthData{Email: "a@example.com"}) }},
		{name: "get", call: func() error { _, err := store.GetAuth(ctx); return err }},
		{name: "delete", call: func() error { return store.DeleteAuth(ctx) }},
		{name: "is authenticated", call: func() error { _, err := store.IsAuthenticated(ctx); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrBucketMissing)
		})
	}
}

func TestStorage_SaveAuth_Nil(t *testing.T) {
	store := newTestStorage(t, filepath.Join(t.TempDir(), "client.db"), "http://a")

	assert.Error(t, store.SaveAuth(context.Background(), nil))
}

func TestStorage_IsAuthenticated_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t, filepath.Join(t.TempDir(), "client.db"), "http://a")

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{AccessToken: "t", ExpiresAt: now.Unix()}))

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "token expiring exactly now is not valid")
}
