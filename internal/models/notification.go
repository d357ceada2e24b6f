package models

import "time"

// NotificationKind - тип уведомления пользователю.
type NotificationKind string

const (
	// NotificationExpiryWarning - тариф скоро закончится.
	NotificationExpiryWarning NotificationKind = "EXPIRY_WARNING"
	// NotificationExpired - тариф закончился.
	NotificationExpired NotificationKind = "EXPIRED"
	// NotificationUpgrade - заявка одобрена, тариф применён.
	NotificationUpgrade NotificationKind = "UPGRADE"
)

// Notification - сообщение, публикуемое в очередь уведомлений.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	UserID   string           `json:"user_id,omitempty"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Plan     Plan             `json:"plan,omitempty"`
	Expiry   *time.Time       `json:"expiry,omitempty"`
	DaysLeft int              `json:"days_left,omitempty"`
	SentAt   time.Time        `json:"sent_at"`
}
