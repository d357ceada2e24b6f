// Package memory реализует хранилище ключ-значение в памяти процесса.
// Используется в тестах и для локального запуска без внешних зависимостей.
package memory

import (
	"context"
	"sync"
)

// Storage хранит значения в map под мьютексом.
type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{data: make(map[string]string)}
}

// Get возвращает значение по ключу.
func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// Set сохраняет значение по ключу.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Close ничего не делает, нужен для единого интерфейса с остальными хранилищами.
func (s *Storage) Close() error {
	return nil
}
