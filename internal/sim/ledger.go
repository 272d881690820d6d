// Package sim содержит движок симуляции торговли: исполнение отложенных
// ордеров по живым ценам, спотовый портфель и фьючерсные расчёты.
package sim

import (
	"errors"

	"cryptosim/internal/models"
	"cryptosim/pkg/utils"
)

// ErrInsufficientPosition - продажа превышает количество в позиции
var ErrInsufficientPosition = errors.New("sell quantity exceeds position quantity")

// ApplyBuy применяет покупку к позиции: количество растёт,
// средняя цена пересчитывается как средневзвешенная.
func ApplyBuy(pos *models.PortfolioPosition, qty, price float64) {
	if qty <= 0 {
		return
	}
	pos.AvgBuyPrice = utils.CalculateWeightedAverage(
		[]float64{pos.AvgBuyPrice, price},
		[]float64{pos.Quantity, qty},
	)
	pos.Quantity += qty
}

// ApplySell применяет продажу: количество уменьшается, средняя цена
// не меняется. Возвращает реализованный PnL по cost basis.
func ApplySell(pos *models.PortfolioPosition, qty, price float64) (float64, error) {
	if qty <= 0 {
		return 0, nil
	}
	if qty > pos.Quantity {
		return 0, ErrInsufficientPosition
	}

	realized := (price - pos.AvgBuyPrice) * qty
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		pos.AvgBuyPrice = 0
	}
	return realized, nil
}
