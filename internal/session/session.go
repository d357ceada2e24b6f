// Package session хранит открытые сессии пользователей: кэш записи пользователя
// и рабочую область с открытой работой. Кэш обновляется после каждой изменяющей операции.
package session

import (
	"strings"
	"sync"

	"github.com/magabrotheeeer/questgen/internal/models"
)

// Session - сессия одного пользователя.
type Session struct {
	mu        sync.Mutex
	user      models.User
	workspace Workspace
}

// User возвращает закэшированную запись пользователя.
func (s *Session) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// WithWorkspace выполняет fn над рабочей областью под мьютексом сессии.
func (s *Session) WithWorkspace(fn func(user models.User, w *Workspace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.user, &s.workspace)
}

// Manager хранит сессии по ключу пользователя.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager создаёт пустой менеджер сессий.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func key(ref models.UserRef) string {
	if ref.ID != "" {
		return "id:" + ref.ID
	}
	return "email:" + strings.ToLower(ref.Email)
}

// Open открывает сессию пользователя или обновляет кэш уже открытой.
func (m *Manager) Open(user models.User) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(user.Ref())
	if s, ok := m.sessions[k]; ok {
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
		return s
	}
	s := &Session{user: user}
	m.sessions[k] = s
	return s
}

// Get возвращает открытую сессию пользователя.
func (m *Manager) Get(ref models.UserRef) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[key(ref)]; ok {
		return s, true
	}
	// ссылка без ID на сессию, открытую по ID
	for _, s := range m.sessions {
		s.mu.Lock()
		match := ref.Matches(s.user)
		s.mu.Unlock()
		if match {
			return s, true
		}
	}
	return nil, false
}

// Refresh заменяет закэшированную запись в сессии с тем же ключом пользователя.
// Запись без ID не попадает в сессию, открытую по ID, даже при совпадении email.
// Сессии, которые не открыты, не создаются.
func (m *Manager) Refresh(user models.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key(user.Ref())]
	if !ok {
		return
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// Close закрывает сессию пользователя.
func (m *Manager) Close(ref models.UserRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key(ref))
}
