// Package boltdb keeps client sessions in a local bbolt file, one per server.
package boltdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// ErrBucketMissing означает поврежденный файл сессий
var ErrBucketMissing = errors.New("sessions bucket not found")

// Storage stores the session of a single server inside a shared file.
type Storage struct {
	db     *bbolt.DB
	key    []byte
	server string
	now    func() time.Time
}

// New opens dbPath and binds the store to serverURL. Sessions of other
// servers in the same file are left untouched.
func New(ctx context.Context, dbPath, serverURL string) (*Storage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	server := strings.TrimRight(serverURL, "/")
	if server == "" {
		return nil, fmt.Errorf("server URL is empty")
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	return &Storage{db: db, key: []byte(server), server: server, now: time.Now}, nil
}

// Server returns the server URL the store is bound to.
func (s *Storage) Server() string {
	return s.server
}

// Close закрывает файл; повторный вызов ничего не делает
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) view(fn func(b *bbolt.Bucket) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return ErrBucketMissing
		}
		return fn(b)
	})
}

func (s *Storage) update(fn func(b *bbolt.Bucket) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return ErrBucketMissing
		}
		return fn(b)
	})
}
