package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var bucketLoginSessions = []byte("login_sessions")

// BoltStore keeps pending logins in a BoltDB file, so a single-node server
// can restart without invalidating logins in flight.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
	ttl time.Duration
}

// NewBoltStore opens (or creates) the BoltDB file at path.
func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLoginSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create login sessions bucket: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &BoltStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create stores a new pending login.
func (s *BoltStore) Create(_ context.Context, userID int64, email, otp string) (string, time.Time, error) {
	id := uuid.NewString()
	p := Pending{
		UserID:    userID,
		Email:     email,
		OTP:       otp,
		ExpiresAt: s.now().Add(s.ttl),
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to marshal login session: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLoginSessions).Put([]byte(id), data)
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to save login session: %w", err)
	}

	return id, p.ExpiresAt, nil
}

// Consume verifies otp; the read-check-delete runs in one write transaction.
func (s *BoltStore) Consume(_ context.Context, sessionID, otp string) (*Identity, error) {
	var (
		identity   *Identity
		consumeErr error
	)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLoginSessions)

		data := bucket.Get([]byte(sessionID))
		if data == nil {
			consumeErr = ErrSessionNotFound
			return nil
		}

		var p Pending
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to unmarshal login session: %w", err)
		}

		var deleteIt bool
		identity, deleteIt, consumeErr = check(&p, otp, s.now())
		if deleteIt {
			return bucket.Delete([]byte(sessionID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume login session: %w", err)
	}

	return identity, consumeErr
}

// Delete removes a session.
func (s *BoltStore) Delete(_ context.Context, sessionID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLoginSessions).Delete([]byte(sessionID))
	})
}

// Sweep removes expired sessions.
func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	now := s.now()
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLoginSessions)

		// Удалять во время итерации курсором нельзя, собираем ключи
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var p Pending
			if err := json.Unmarshal(v, &p); err != nil || p.Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep login sessions: %w", err)
	}

	return removed, nil
}
