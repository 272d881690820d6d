package models

import "time"

// PortfolioPosition представляет спотовую позицию пользователя по одному активу.
//
// Инварианты:
// - Quantity >= 0
// - AvgBuyPrice пересчитывается только на покупках (средневзвешенная цена),
//   продажи уменьшают Quantity не меняя AvgBuyPrice
type PortfolioPosition struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	AvgBuyPrice float64   `json:"avg_buy_price" db:"avg_buy_price"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UnrealizedPnL возвращает нереализованную прибыль/убыток при текущей цене
func (p *PortfolioPosition) UnrealizedPnL(markPrice float64) float64 {
	return (markPrice - p.AvgBuyPrice) * p.Quantity
}
