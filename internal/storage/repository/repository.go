// Package repository хранит коллекции пользователей, заявок и работ
// поверх хранилища ключ-значение. Каждая коллекция - один JSON-массив под своим ключом,
// любое изменение выполняется полным чтением и полной записью коллекции.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/questgen/internal/lib/sl"
)

// Ключи коллекций в хранилище.
const (
	UsersKey        = "questgen_users"
	TransactionsKey = "questgen_transactions"
	PapersKey       = "questgen_papers"
)

var (
	// ErrUserNotFound - ни одна запись не подходит под ссылку на пользователя.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists - пользователь с такой почтой уже зарегистрирован.
	ErrUserExists = errors.New("user already exists")
	// ErrPaperNotFound - работа не найдена или недоступна пользователю.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrPaperUndecodable - элемент архива не удаётся разобрать.
	ErrPaperUndecodable = errors.New("paper record is undecodable")
)

// KV - контракт хранилища строк по ключу.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Storage сериализует чтение-изменение-запись коллекций общим мьютексом процесса.
type Storage struct {
	kv  KV
	log *slog.Logger
	mu  sync.RWMutex
}

// New создаёт репозиторий поверх хранилища kv.
func New(kv KV, log *slog.Logger) *Storage {
	return &Storage{kv: kv, log: log}
}

// load читает коллекцию key в dst. Отсутствующий ключ - пустая коллекция.
func (s *Storage) load(ctx context.Context, key string, dst any) error {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// save записывает коллекцию целиком.
func (s *Storage) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(data))
}

// decodeElements разбирает элементы коллекции key по одному. Элементы, которые не
// разбираются, возвращаются отдельно и дописываются обратно при сохранении через saveElements.
func decodeElements[T any](ctx context.Context, s *Storage, key string) ([]T, []json.RawMessage, error) {
	var raw []json.RawMessage
	if err := s.load(ctx, key, &raw); err != nil {
		return nil, nil, err
	}
	items := make([]T, 0, len(raw))
	var corrupt []json.RawMessage
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			s.log.Warn("skip undecodable record",
				slog.String("key", key),
				slog.Int("index", i),
				sl.Err(err),
			)
			corrupt = append(corrupt, r)
			continue
		}
		items = append(items, item)
	}
	return items, corrupt, nil
}

// saveElements записывает коллекцию, сохраняя неразобранные элементы в её конце.
func saveElements[T any](ctx context.Context, s *Storage, key string, items []T, corrupt []json.RawMessage) error {
	if len(corrupt) == 0 {
		return s.save(ctx, key, items)
	}
	raw := make([]json.RawMessage, 0, len(items)+len(corrupt))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		raw = append(raw, data)
	}
	return s.save(ctx, key, append(raw, corrupt...))
}

func ctxErr(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// Ping проверяет, что хранилище отвечает.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if _, _, err := s.kv.Get(ctx, UsersKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
