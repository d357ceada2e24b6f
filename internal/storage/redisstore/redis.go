// Package redisstore реализует хранилище ключ-значение на Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/redis/go-redis/v9"
)

// Storage хранит коллекции строками в Redis без срока жизни.
type Storage struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Storage, error) {
	const op = "redisstore.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{Db: db}, nil
}

// Get возвращает значение по ключу.
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "redisstore.Get"
	val, err := s.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

// Set сохраняет значение по ключу.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "redisstore.Set"
	if err := s.Db.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает клиент Redis.
func (s *Storage) Close() error {
	return s.Db.Close()
}
