package models

import "time"

// TransactionStatus - статус заявки на оплату.
type TransactionStatus string

const (
	// TransactionPending - заявка ожидает решения администратора.
	TransactionPending TransactionStatus = "pending"
	// TransactionSuccess - заявка одобрена, тариф применён.
	TransactionSuccess TransactionStatus = "success"
	// TransactionRejected - заявка отклонена администратором.
	TransactionRejected TransactionStatus = "rejected"
	// TransactionFailed - заявка вытеснена более новой заявкой того же пользователя.
	TransactionFailed TransactionStatus = "failed"
)

// IsTerminal сообщает, что статус больше не может измениться.
func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionPending
}

// Transaction представляет заявку пользователя на смену тарифа.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	UserEmail string            `json:"user_email"`
	Plan      Plan              `json:"plan"`
	Amount    int               `json:"amount"`
	CreatedAt time.Time         `json:"created_at"`
	Status    TransactionStatus `json:"status"`
}

// UserRef возвращает ссылку на владельца заявки.
func (t Transaction) UserRef() UserRef {
	return UserRef{ID: t.UserID, Email: t.UserEmail}
}

// Accounts - согласованный снимок пользователей и заявок,
// изменяемый в рамках одной операции чтения-изменения-записи.
type Accounts struct {
	Users        []User
	Transactions []Transaction
}

// FindTransaction возвращает индекс заявки по ID или -1.
func (a *Accounts) FindTransaction(id string) int {
	for i := range a.Transactions {
		if a.Transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateUsers применяет fn ко всем записям, подходящим под ref, и возвращает обновлённые записи.
func (a *Accounts) UpdateUsers(ref UserRef, fn func(User) User) []User {
	var updated []User
	for i := range a.Users {
		if ref.Matches(a.Users[i]) {
			a.Users[i] = fn(a.Users[i])
			updated = append(updated, a.Users[i])
		}
	}
	return updated
}
