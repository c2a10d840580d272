package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/storyshelf/internal/bookmark"
	"github.com/MrSnakeDoc/storyshelf/internal/config"
	"github.com/MrSnakeDoc/storyshelf/internal/index"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/redis"
	filestore "github.com/MrSnakeDoc/storyshelf/internal/store/file"
	redisstore "github.com/MrSnakeDoc/storyshelf/internal/store/redis"
	sqlitestore "github.com/MrSnakeDoc/storyshelf/internal/store/sqlite"
	"github.com/MrSnakeDoc/storyshelf/internal/subscription"
)

// backend is what every storage implementation provides.
type backend interface {
	bookmark.Backend
	subscription.Backend
}

// storage is an opened backend with its probe and cleanup.
type storage struct {
	backend
	name  string
	ping  func(context.Context) error
	close func() error
}

func (s *storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStorage opens the backend selected by cfg.Backend.
func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*storage, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info("sqlite storage opened", logger.String("path", cfg.SQLitePath))
		return &storage{backend: s, name: cfg.Backend, ping: s.Ping, close: s.Close}, nil

	case config.BackendFile:
		log.Info("file storage selected", logger.String("path", cfg.BookmarkFile))
		return &storage{backend: filestore.New(cfg.BookmarkFile), name: cfg.Backend}, nil

	case config.BackendRedis:
		client, err := connectRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend: redisstore.NewStore(client, cfg.Namespace),
			name:    cfg.Backend,
			ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:   client.Close,
		}, nil

	case config.BackendMemory:
		log.Warn("memory storage selected, bookmarks are lost on exit")
		return &storage{backend: index.NewMemoryIndex(), name: cfg.Backend}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func connectRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*goredis.Client, error) {
	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Redis initialized successfully")
	return client, nil
}
