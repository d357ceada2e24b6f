package questgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/migrations"
	"github.com/magabrotheeeer/questgen/internal/storage/memory"
	"github.com/magabrotheeeer/questgen/internal/storage/postgresql"
	"github.com/magabrotheeeer/questgen/internal/storage/redisstore"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

type kvStore interface {
	repository.KV
	Close() error
}

func waitForDB(ctx context.Context, db *postgresql.Storage) error {
	for range 10 {
		err := postgresql.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// openStore выбирает хранилище коллекций по cfg.Driver.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kvStore, error) {
	const op = "questgen.openStore"

	switch cfg.Driver {
	case "memory", "":
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case "postgres":
		db, err := postgresql.New(cfg.StorageConnectionString)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = waitForDB(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return db, nil
	case "redis":
		rdb, err := redisstore.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return rdb, nil
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
	}
}
