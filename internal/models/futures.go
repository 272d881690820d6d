package models

import "time"

// FuturesPosition представляет фьючерсную позицию пользователя.
//
// Инварианты:
// - Leverage в диапазоне [1, 125]
// - LiquidationPrice пересчитывается при открытии и при изменении isolated маржи
// - Quantity никогда не уходит в минус: позиция закрывается полностью или частично
type FuturesPosition struct {
	ID               int        `json:"id" db:"id"`
	UserID           int        `json:"user_id" db:"user_id"`
	Symbol           string     `json:"symbol" db:"symbol"`
	Side             string     `json:"side" db:"side"` // long, short
	Quantity         float64    `json:"quantity" db:"quantity"`
	EntryPrice       float64    `json:"entry_price" db:"entry_price"`
	Leverage         int        `json:"leverage" db:"leverage"`
	MarginMode       string     `json:"margin_mode" db:"margin_mode"` // cross, isolated
	IsolatedMargin   float64    `json:"isolated_margin" db:"isolated_margin"`
	LiquidationPrice float64    `json:"liquidation_price" db:"liquidation_price"`
	Status           string     `json:"status" db:"status"` // open, closed
	RealizedPnL      float64    `json:"realized_pnl" db:"realized_pnl"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// Направления позиции
const (
	PositionSideLong  = "long"
	PositionSideShort = "short"
)

// Режимы маржи
const (
	MarginModeCross    = "cross"
	MarginModeIsolated = "isolated"
)

// Статусы позиции
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Ограничения плеча
const (
	MinLeverage = 1
	MaxLeverage = 125
)

// Margin возвращает маржу, обеспечивающую позицию.
// Для isolated это выделенная маржа, для cross — нотционал позиции делённый на плечо.
func (p *FuturesPosition) Margin() float64 {
	if p.MarginMode == MarginModeIsolated {
		return p.IsolatedMargin
	}
	if p.Leverage <= 0 {
		return 0
	}
	return p.EntryPrice * p.Quantity / float64(p.Leverage)
}
