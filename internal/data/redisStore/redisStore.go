package redisStore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/pkg/logger_i"
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// NewStore dials one logical redis database and pings it before handing the
// store out. Callers own the lifecycle and close it on shutdown, there is no
// shared instance registry.
func NewStore(ctx context.Context, dbType int) (*Store, error) {
	addr := config.GetEnvOr("REDIS_ADDR", config.RedisAddr)

	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		Password:              config.RedisPassword,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger := logger_i.NewLogger("Redis Store")
	logger.Info("Redis connected", "addr", addr, "db", dbType)

	return &Store{
		client: client,
		Type:   dbType,
		logger: logger,
	}, nil
}

func (s *Store) Close() error {
	s.logger.Info("Closing redis store", "db", s.Type)
	return s.client.Close()
}

// NewTestStore wraps an already-dialled client, for miniredis-backed tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("Redis Store (test)"),
	}
}
