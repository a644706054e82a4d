package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/transitauth/internal/client/storage"
)

// SaveAuth replaces the session of the bound server.
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return fmt.Errorf("auth data is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	return s.update(func(b *bbolt.Bucket) error {
		return b.Put(s.key, data)
	})
}

// GetAuth returns storage.ErrAuthNotFound when the server has no session.
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var auth storage.AuthData
	err := s.view(func(b *bbolt.Bucket) error {
		data := b.Get(s.key)
		if data == nil {
			return storage.ErrAuthNotFound
		}
		// data живет только внутри транзакции, Unmarshal копирует
		return json.Unmarshal(data, &auth)
	})
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// DeleteAuth removes the session of the bound server.
func (s *Storage) DeleteAuth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(b *bbolt.Bucket) error {
		if b.Get(s.key) == nil {
			return storage.ErrAuthNotFound
		}
		return b.Delete(s.key)
	})
}

// IsAuthenticated reports whether a session exists and its token has not
// expired yet.
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	switch {
	case errors.Is(err, storage.ErrAuthNotFound):
		return false, nil
	case err != nil:
		return false, err
	}

	return s.now().Before(time.Unix(auth.ExpiresAt, 0)), nil
}
