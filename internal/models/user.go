// Package models содержит доменные структуры сервиса: пользователей, тарифы,
// заявки на оплату, сохранённые работы и сообщения уведомлений.
// Структуры сериализуются в JSON целыми коллекциями и так хранятся в хранилище.
package models

import (
	"strings"
	"time"
)

// Role - роль пользователя.
type Role string

const (
	// RoleTeacher - учитель, основной пользователь с тарифными ограничениями.
	RoleTeacher Role = "teacher"
	// RoleAdmin - администратор, ограничения тарифа на него не действуют.
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID                      string     `json:"id,omitempty"`                        // Идентификатор, у старых записей может отсутствовать
	Name                    string     `json:"name"`                                // Имя
	Email                   string     `json:"email"`                               // Электронная почта
	Mobile                  string     `json:"mobile,omitempty"`                    // Телефон
	SchoolName              string     `json:"school_name,omitempty"`               // Название школы для шапки работы
	PasswordHash            string     `json:"password_hash,omitempty"`             // bcrypt-хэш пароля
	Role                    Role       `json:"role"`                                // teacher или admin
	SubscriptionPlan        Plan       `json:"subscription_plan"`                   // Текущий тариф
	PendingSubscriptionPlan Plan       `json:"pending_subscription_plan,omitempty"` // Тариф, ожидающий одобрения
	PapersGenerated         int        `json:"papers_generated"`                    // Счётчик генераций в текущем периоде
	SubscriptionExpiry      *time.Time `json:"subscription_expiry,omitempty"`       // Дата окончания тарифа
}

// Normalize заполняет значения по умолчанию для записей, созданных до появления тарифов.
func (u User) Normalize() User {
	if u.SubscriptionPlan == "" {
		u.SubscriptionPlan = PlanFree
	}
	if u.PapersGenerated < 0 {
		u.PapersGenerated = 0
	}
	if u.Role == "" {
		u.Role = RoleTeacher
	}
	return u
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPending сообщает, есть ли у пользователя заявка, ожидающая одобрения.
func (u User) HasPending() bool {
	return u.PendingSubscriptionPlan != ""
}

// Public возвращает копию записи без хэша пароля для ответов API.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Ref возвращает ссылку на пользователя для поиска в хранилище.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email}
}

// UserRef ссылается на пользователя по идентификатору и почте.
// Почта дублирует идентификатор для старых записей без ID.
type UserRef struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// Matches - единственное правило сопоставления записи пользователя со ссылкой.
// Если ID есть и у ссылки, и у записи, сравниваются только ID; иначе - почта без учёта регистра.
func (r UserRef) Matches(u User) bool {
	if r.ID != "" && u.ID != "" {
		return r.ID == u.ID
	}
	return r.Email != "" && strings.EqualFold(r.Email, u.Email)
}

// IsZero сообщает, что ссылка пустая.
func (r UserRef) IsZero() bool {
	return r.ID == "" && r.Email == ""
}
