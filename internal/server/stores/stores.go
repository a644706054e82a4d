// Package stores opens the credential storage and the login session store
// selected in the configuration.
package stores

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/transitauth/internal/config"
	"github.com/iudanet/transitauth/internal/server/session"
	"github.com/iudanet/transitauth/internal/server/storage"
	"github.com/iudanet/transitauth/internal/server/storage/postgres"
	"github.com/iudanet/transitauth/internal/server/storage/sqlite"
)

// UserStore хранилище учетных записей вместе с проверкой здоровья
type UserStore interface {
	storage.UserStorage
	storage.Pinger
	io.Closer
}

// OpenUsers открывает хранилище по database.driver и применяет миграции
func OpenUsers(ctx context.Context, cfg config.DatabaseConfig) (UserStore, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN, postgres.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenSessions создает хранилище login-сессий по auth.session_store.
// Возвращаемая функция освобождает ресурсы хранилища.
func OpenSessions(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Auth.SessionStore {
	case "memory":
		return session.NewMemoryStore(cfg.Auth.LoginSessionTTL), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := session.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Auth.LoginSessionTTL)
		return store, func() { _ = client.Close() }, nil
	case "bolt":
		store, err := session.NewBoltStore(cfg.Auth.BoltPath, cfg.Auth.LoginSessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Auth.SessionStore)
	}
}
