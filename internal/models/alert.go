package models

import "time"

// PriceAlert представляет ценовое уведомление пользователя.
// Жизненный цикл: активно до срабатывания (терминально) или до удаления пользователем.
type PriceAlert struct {
	ID          int        `json:"id" db:"id"`
	UserID      int        `json:"user_id" db:"user_id"`
	Symbol      string     `json:"symbol" db:"symbol"`
	TargetPrice float64    `json:"target_price" db:"target_price"`
	Direction   string     `json:"direction" db:"direction"` // above, below
	IsActive    bool       `json:"is_active" db:"is_active"`
	Triggered   bool       `json:"triggered" db:"triggered"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty" db:"triggered_at"`
}

// Направления срабатывания алерта
const (
	AlertDirectionAbove = "above"
	AlertDirectionBelow = "below"
)

// ShouldTrigger проверяет условие срабатывания при текущей цене
func (a *PriceAlert) ShouldTrigger(price float64) bool {
	if !a.IsActive || a.Triggered {
		return false
	}
	switch a.Direction {
	case AlertDirectionAbove:
		return price >= a.TargetPrice
	case AlertDirectionBelow:
		return price <= a.TargetPrice
	default:
		return false
	}
}
