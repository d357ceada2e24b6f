// Package postgresql реализует хранилище ключ-значение на PostgreSQL.
// Каждая коллекция хранится одной строкой таблицы kv_store целиком в виде JSON.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// CheckDatabaseReady проверяет, что миграции применены и таблица kv_store существует.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables 
        WHERE table_name = 'kv_store'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("required table kv_store query error: %w", err)
	}
	if !exists {
		return fmt.Errorf("required table kv_store missing")
	}
	return nil
}

// Get возвращает значение по ключу. Отсутствие ключа не является ошибкой.
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.postgresql.Get"

	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return value, true, nil
}

// Set сохраняет значение по ключу, перезаписывая предыдущее.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgresql.Set"

	query := `INSERT INTO kv_store (key, value, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (key) DO UPDATE
			  SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с базой.
func (s *Storage) Close() error {
	return s.DB.Close()
}
