package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")

	store, err := New(context.Background(), dbPath, "http://localhost:8080/")
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	// Файл создан с правами только для владельца
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Equal(t, "http://localhost:8080", store.Server())

	err = store.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions) == nil {
			return os.ErrNotExist
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestNew_Errors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		ctx    context.Context
		name   string
		path   string
		server string
	}{
		{
			name:   "empty server",
			ctx:    context.Background(),
			path:   filepath.Join(t.TempDir(), "client.db"),
			server: "",
		},
		{
			name:   "invalid path",
			ctx:    context.Background(),
			path:   filepath.Join(t.TempDir(), "missing", "client.db"),
			server: "http://localhost:8080",
		},
		{
			name:   "cancelled context",
			ctx:    cancelled,
			path:   filepath.Join(t.TempDir(), "client.db"),
			server: "http://localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.ctx, tt.path, tt.server)
			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}
}

func TestClose_Twice(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"), "http://a")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}

func TestNew_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")

	first, err := New(context.Background(), dbPath, "http://a")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Повторное открытие не пересоздает bucket
	second, err := New(context.Background(), dbPath, "http://a")
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}
