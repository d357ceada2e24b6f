package models

// Plan - тариф пользователя.
type Plan string

const (
	// PlanFree - пробный тариф, одна генерация без ограничения по времени.
	PlanFree Plan = "free"
	// PlanMonthly - месячный тариф.
	PlanMonthly Plan = "monthly"
	// PlanYearly - годовой тариф без ограничения по количеству генераций.
	PlanYearly Plan = "yearly"
)

// PlanTerms описывает лимиты тарифа.
type PlanTerms struct {
	PaperLimit   int  // Максимум сгенерированных работ до следующего продления
	Unlimited    bool // Лимит по количеству не применяется
	DurationDays int  // Срок действия после одобрения, 0 - бессрочно
}

// Terms сопоставляет тарифы и их лимиты.
var Terms = map[Plan]PlanTerms{
	PlanFree:    {PaperLimit: 1},
	PlanMonthly: {PaperLimit: 5, DurationDays: 30},
	PlanYearly:  {Unlimited: true, DurationDays: 365},
}

// Valid сообщает, известен ли тариф.
func (p Plan) Valid() bool {
	_, ok := Terms[p]
	return ok
}

// Terms возвращает лимиты тарифа.
func (p Plan) Terms() (PlanTerms, bool) {
	t, ok := Terms[p]
	return t, ok
}
