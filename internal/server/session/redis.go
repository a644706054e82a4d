package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "login_session"
	maxConsumeRetries  = 4
)

// ErrConsumeContention значит, что ключ менялся при каждой попытке WATCH
var ErrConsumeContention = errors.New("login session modified concurrently")

// RedisStore keeps pending logins in Redis so that every API instance sees
// the same sessions.
//
// Keys outlive the session by one TTL: an expired session is still found and
// reported as ErrSessionExpired before Redis evicts it.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Create stores a new pending login.
func (s *RedisStore) Create(ctx context.Context, userID int64, email, otp string) (string, time.Time, error) {
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

	if err := s.client.Set(ctx, s.key(id), data, 2*s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to save login session: %w", err)
	}

	return id, p.ExpiresAt, nil
}

// Consume verifies otp inside a WATCH transaction so that two concurrent
// attempts cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, sessionID, otp string) (*Identity, error) {
	key := s.key(sessionID)

	var (
		identity   *Identity
		consumeErr error
	)

	txf := func(tx *redis.Tx) error {
		identity, consumeErr = nil, nil

		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				consumeErr = ErrSessionNotFound
				return nil
			}
			return err
		}

		var p Pending
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to unmarshal login session: %w", err)
		}

		var deleteIt bool
		identity, deleteIt, consumeErr = check(&p, otp, s.now())
		if !deleteIt {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < maxConsumeRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Ключ изменился между GET и EXEC, пробуем снова
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to consume login session: %w", err)
		}
		return identity, consumeErr
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConsumeContention, maxConsumeRetries, redis.TxFailedErr)
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}
	return nil
}
