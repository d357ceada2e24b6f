package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/questgen/internal/models"
)

// usersDoc - снимок коллекции пользователей вместе с неразобранными элементами.
type usersDoc struct {
	users   []models.User
	corrupt []json.RawMessage
}

func (s *Storage) loadUsers(ctx context.Context) (usersDoc, error) {
	users, corrupt, err := decodeElements[models.User](ctx, s, UsersKey)
	if err != nil {
		return usersDoc{}, err
	}
	for i := range users {
		users[i] = users[i].Normalize()
	}
	return usersDoc{users: users, corrupt: corrupt}, nil
}

func (s *Storage) saveUsers(ctx context.Context, doc usersDoc, users []models.User) error {
	return saveElements(ctx, s, UsersKey, users, doc.corrupt)
}

type transactionsDoc struct {
	txs     []models.Transaction
	corrupt []json.RawMessage
}

func (s *Storage) loadTransactions(ctx context.Context) (transactionsDoc, error) {
	txs, corrupt, err := decodeElements[models.Transaction](ctx, s, TransactionsKey)
	if err != nil {
		return transactionsDoc{}, err
	}
	return transactionsDoc{txs: txs, corrupt: corrupt}, nil
}

// Users возвращает всех пользователей с заполненными значениями по умолчанию.
func (s *Storage) Users(ctx context.Context) ([]models.User, error) {
	const op = "storage.Users"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.users, nil
}

// Transactions возвращает все заявки в порядке добавления, новые первыми.
func (s *Storage) Transactions(ctx context.Context) ([]models.Transaction, error) {
	const op = "storage.Transactions"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.txs, nil
}

// ResolveUser находит первую запись пользователя, подходящую под ref.
func (s *Storage) ResolveUser(ctx context.Context, ref models.UserRef) (models.User, error) {
	const op = "storage.ResolveUser"
	users, err := s.Users(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range users {
		if ref.Matches(u) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
}

// CreateUser добавляет пользователя. Почта должна быть уникальной без учёта регистра.
func (s *Storage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.CreateUser"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadUsers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range doc.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%s: %w", op, ErrUserExists)
		}
	}
	users := append(doc.users, user.Normalize())
	if err := s.saveUsers(ctx, doc, users); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUser применяет fn ко всем записям пользователя ref и возвращает первую обновлённую.
func (s *Storage) UpdateUser(ctx context.Context, ref models.UserRef, fn func(models.User) models.User) (models.User, error) {
	const op = "storage.UpdateUser"
	if err := ctxErr(ctx, op); err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadUsers(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	acc := models.Accounts{Users: doc.users}
	updated := acc.UpdateUsers(ref, fn)
	if len(updated) == 0 {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err := s.saveUsers(ctx, doc, acc.Users); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated[0], nil
}

// UpdateUserIf под мьютексом проверяет check на первой записи пользователя ref
// и, если check не вернула ошибку, применяет fn ко всем его записям.
// Ошибка check возвращается как есть, коллекция при этом не записывается.
func (s *Storage) UpdateUserIf(ctx context.Context, ref models.UserRef, check func(models.User) error, fn func(models.User) models.User) (models.User, error) {
	const op = "storage.UpdateUserIf"
	if err := ctxErr(ctx, op); err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadUsers(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	idx := -1
	for i, u := range doc.users {
		if ref.Matches(u) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err := check(doc.users[idx]); err != nil {
		return models.User{}, err
	}

	acc := models.Accounts{Users: doc.users}
	updated := acc.UpdateUsers(ref, fn)
	if err := s.saveUsers(ctx, doc, acc.Users); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated[0], nil
}

// UpdateAccounts выполняет fn над согласованным снимком пользователей и заявок
// и записывает обе коллекции. Если fn вернула ошибку, ничего не записывается.
// Мьютекс удерживается на протяжении всей операции.
func (s *Storage) UpdateAccounts(ctx context.Context, fn func(acc *models.Accounts) error) error {
	const op = "storage.UpdateAccounts"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	acc := &models.Accounts{Users: users.users, Transactions: txs.txs}
	if err := fn(acc); err != nil {
		return err
	}

	if err := saveElements(ctx, s, TransactionsKey, acc.Transactions, txs.corrupt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.saveUsers(ctx, users, acc.Users); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
