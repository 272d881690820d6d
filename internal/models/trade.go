package models

import "time"

// Trade представляет отложенный (симулируемый) ордер пользователя.
// Жизненный цикл: pending -> completed | cancelled. Терминальные статусы не меняются.
type Trade struct {
	ID            int        `json:"id" db:"id"`
	UserID        int        `json:"user_id" db:"user_id"`
	Symbol        string     `json:"symbol" db:"symbol"`
	Side          string     `json:"side" db:"side"` // buy, sell
	Type          string     `json:"type" db:"type"` // market, limit, stop
	Quantity      float64    `json:"quantity" db:"quantity"`
	LimitPrice    float64    `json:"limit_price,omitempty" db:"limit_price"`
	StopPrice     float64    `json:"stop_price,omitempty" db:"stop_price"`
	ExecPrice     float64    `json:"exec_price,omitempty" db:"exec_price"` // цена фактического исполнения
	Status        string     `json:"status" db:"status"`                   // pending, completed, cancelled
	StopTriggered bool       `json:"stop_triggered" db:"stop_triggered"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	FilledAt      *time.Time `json:"filled_at,omitempty" db:"filled_at"`
}

// Статусы ордера
const (
	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusCancelled = "cancelled"
)

// Стороны и типы ордеров
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	TradeTypeMarket = "market"
	TradeTypeLimit  = "limit"
	TradeTypeStop   = "stop"
)

// IsTerminal возвращает true если ордер в терминальном статусе
func (t *Trade) IsTerminal() bool {
	return t.Status == TradeStatusCompleted || t.Status == TradeStatusCancelled
}
