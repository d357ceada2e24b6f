// Package period содержит расчёты сроков действия тарифа.
package period

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// WarningDays - за сколько дней до окончания тарифа отправляется предупреждение.
const WarningDays = 5

// ExpiryAfter возвращает дату окончания тарифа через days календарных дней от now.
// Для days <= 0 тариф бессрочный и возвращается nil.
func ExpiryAfter(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	expiry := now.AddDate(0, 0, days)
	return &expiry
}

// Expired сообщает, что момент now строго позже даты окончания.
func Expired(expiry *time.Time, now time.Time) bool {
	return expiry != nil && now.After(*expiry)
}

// DaysLeft считает количество оставшихся дней, округляя вверх.
// Для уже истёкшего тарифа значение будет нулевым или отрицательным.
func DaysLeft(expiry time.Time, now time.Time) int {
	return int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))
}

// ExpiringSoon сообщает, что до окончания осталось от 1 до WarningDays дней.
func ExpiringSoon(expiry *time.Time, now time.Time) (int, bool) {
	if expiry == nil {
		return 0, false
	}
	days := DaysLeft(*expiry, now)
	return days, days > 0 && days <= WarningDays
}
