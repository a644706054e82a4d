package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock управляемое время для тестов
type clock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, c *clock) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, c *clock) Store {
			s := NewMemoryStore(DefaultTTL)
			s.now = c.Now
			return s
		},
		"redis": func(t *testing.T, c *clock) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })

			s := NewRedisStore(client, "test", DefaultTTL)
			s.now = c.Now
			return s
		},
		"bolt": func(t *testing.T, c *clock) Store {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "sessions.db"), DefaultTTL)
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, s.Close()) })

			s.now = c.Now
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store, c *clock)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			c := &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
			fn(t, factory(t, c), c)
		})
	}
}

func TestStore_CreateAndConsume(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, expiresAt, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, c.Now().Add(DefaultTTL), expiresAt)

		identity, err := s.Consume(ctx, id, "123456")
		require.NoError(t, err)
		assert.Equal(t, &Identity{UserID: 7, Email: "a@b.com"}, identity)
	})
}

func TestStore_ConsumeIsSingleUse(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)

		_, err = s.Consume(ctx, id, "123456")
		require.NoError(t, err)

		// Повторное использование той же сессии
		_, err = s.Consume(ctx, id, "123456")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_WrongOTPKeepsSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err = s.Consume(ctx, id, "000000")
			assert.ErrorIs(t, err, ErrOTPMismatch)
		}

		identity, err := s.Consume(ctx, id, "123456")
		require.NoError(t, err)
		assert.Equal(t, int64(7), identity.UserID)
	})
}

func TestStore_UnknownSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		_, err := s.Consume(context.Background(), "does-not-exist", "123456")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_ExpiredSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)

		c.Advance(DefaultTTL + time.Second)

		// Даже правильный код не принимается после истечения
		_, err = s.Consume(ctx, id, "123456")
		assert.ErrorIs(t, err, ErrSessionExpired)

		// Истекшая сессия удалена
		_, err = s.Consume(ctx, id, "123456")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_SessionsForSameUserAreIndependent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		first, _, err := s.Create(ctx, 7, "a@b.com", "111111")
		require.NoError(t, err)
		second, _, err := s.Create(ctx, 7, "a@b.com", "222222")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		// OTP одной сессии не подходит к другой
		_, err = s.Consume(ctx, first, "222222")
		assert.ErrorIs(t, err, ErrOTPMismatch)

		_, err = s.Consume(ctx, second, "222222")
		require.NoError(t, err)

		// Первая сессия не инвалидирована успехом второй
		_, err = s.Consume(ctx, first, "111111")
		require.NoError(t, err)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id))
		require.NoError(t, s.Delete(ctx, id), "deleting a missing session is not an error")

		_, err = s.Consume(ctx, id, "123456")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Consume(ctx, id, "123456"); err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
	})
}

func TestStore_ConcurrentCreate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[string]struct{})
		)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, _, err := s.Create(ctx, 7, "a@b.com", "123456")
				assert.NoError(t, err)
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 32)
	})
}

func TestSweep(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		sweeper, ok := s.(Sweeper)
		if !ok {
			t.Skip("backend expires keys by itself")
		}
		ctx := context.Background()

		old, _, err := s.Create(ctx, 1, "old@b.com", "111111")
		require.NoError(t, err)

		c.Advance(DefaultTTL + time.Second)

		fresh, _, err := s.Create(ctx, 2, "fresh@b.com", "222222")
		require.NoError(t, err)

		removed, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.Consume(ctx, old, "111111")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		_, err = s.Consume(ctx, fresh, "222222")
		assert.NoError(t, err)
	})
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	_, _, err := store.Create(context.Background(), 1, "a@b.com", "123456")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		RunJanitor(ctx, store, 5*time.Millisecond, logger)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRedisStore_KeyTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "", time.Minute)
	id, _, err := s.Create(context.Background(), 1, "a@b.com", "123456")
	require.NoError(t, err)

	key := "login_session:" + id
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Minute, mr.TTL(key))

	mr.FastForward(3 * time.Minute)
	_, err = s.Consume(context.Background(), id, "123456")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// failingExecHook отвечает на каждый EXEC так, будто WATCH сработал
type failingExecHook struct {
	execs atomic.Int32
}

func (h *failingExecHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingExecHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *failingExecHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.execs.Add(1)
		return redis.TxFailedErr
	}
}

func TestRedisStore_ConsumeGivesUpOnContention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "test", time.Minute)
	id, _, err := s.Create(context.Background(), 1, "a@b.com", "123456")
	require.NoError(t, err)

	hook := &failingExecHook{}
	client.AddHook(hook)

	_, err = s.Consume(context.Background(), id, "123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConsumeContention)
	assert.NotErrorIs(t, err, ErrSessionNotFound, "the session still exists")
	assert.Equal(t, int32(maxConsumeRetries), hook.execs.Load())
	assert.True(t, mr.Exists("test:"+id))
}
