package sim

import (
	"errors"
	"fmt"

	"cryptosim/internal/models"
	"cryptosim/pkg/utils"
)

// maintenanceBuffer - запас на поддерживающую маржу и комиссию ликвидации.
// Сдвигает цену ликвидации в сторону entry, чтобы позиция ликвидировалась
// до полного обнуления маржи.
const maintenanceBuffer = 0.005

var (
	// ErrInvalidLeverage - плечо вне диапазона [1, 125]
	ErrInvalidLeverage = errors.New("leverage out of range")

	// ErrPositionClosed - операция над закрытой позицией
	ErrPositionClosed = errors.New("position is already closed")

	// ErrInvalidCloseQuantity - частичное закрытие больше размера позиции
	ErrInvalidCloseQuantity = errors.New("close quantity exceeds position quantity")

	// ErrMarginWithdrawTooLarge - снятие маржи больше выделенной
	ErrMarginWithdrawTooLarge = errors.New("margin withdrawal exceeds isolated margin")
)

// ValidateLeverage проверяет диапазон плеча
func ValidateLeverage(leverage int) error {
	if leverage < models.MinLeverage || leverage > models.MaxLeverage {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidLeverage, leverage, models.MinLeverage, models.MaxLeverage)
	}
	return nil
}

// LiquidationPrice вычисляет цену ликвидации позиции.
//
// Long:  E * (1 - 1/L + buffer) - всегда ниже entry
// Short: E * (1 + 1/L - buffer) - всегда выше entry
func LiquidationPrice(side string, entryPrice float64, leverage int) float64 {
	if leverage <= 0 || entryPrice <= 0 {
		return 0
	}
	inv := 1 / float64(leverage)

	switch side {
	case models.PositionSideLong:
		return entryPrice * (1 - inv + maintenanceBuffer)
	case models.PositionSideShort:
		return entryPrice * (1 + inv - maintenanceBuffer)
	default:
		return 0
	}
}

// FuturesUnrealizedPnL возвращает нереализованный PnL позиции по текущей цене
func FuturesUnrealizedPnL(pos *models.FuturesPosition, markPrice float64) float64 {
	return utils.CalculatePNL(pos.Side, pos.EntryPrice, markPrice, pos.Quantity)
}

// ROE возвращает return on equity: нереализованный PnL к марже, в процентах
func ROE(pos *models.FuturesPosition, markPrice float64) float64 {
	margin := pos.Margin()
	if margin <= 0 {
		return 0
	}
	return FuturesUnrealizedPnL(pos, markPrice) / margin * 100
}

// OpenFuturesPosition инициализирует новую позицию: валидирует плечо,
// назначает маржу и считает цену ликвидации
func OpenFuturesPosition(pos *models.FuturesPosition) error {
	if err := ValidateLeverage(pos.Leverage); err != nil {
		return err
	}
	if pos.Quantity <= 0 || pos.EntryPrice <= 0 {
		return errors.New("quantity and entry price must be positive")
	}
	if pos.Side != models.PositionSideLong && pos.Side != models.PositionSideShort {
		return fmt.Errorf("unknown position side: %s", pos.Side)
	}

	if pos.MarginMode == models.MarginModeIsolated && pos.IsolatedMargin == 0 {
		// По умолчанию выделяется начальная маржа: нотционал / плечо
		pos.IsolatedMargin = pos.EntryPrice * pos.Quantity / float64(pos.Leverage)
	}

	pos.LiquidationPrice = LiquidationPrice(pos.Side, pos.EntryPrice, pos.Leverage)
	pos.Status = models.PositionStatusOpen
	return nil
}

// CloseFuturesPosition закрывает позицию полностью или частично по цене exec.
// Возвращает реализованный PnL закрытой части. Количество никогда не уходит
// в минус: частичное закрытие уменьшает Quantity, полное ставит статус closed.
func CloseFuturesPosition(pos *models.FuturesPosition, closeQty, execPrice float64) (float64, error) {
	if pos.Status != models.PositionStatusOpen {
		return 0, ErrPositionClosed
	}
	if closeQty <= 0 || closeQty > pos.Quantity {
		return 0, ErrInvalidCloseQuantity
	}

	realized := utils.CalculatePNL(pos.Side, pos.EntryPrice, execPrice, closeQty)
	pos.RealizedPnL += realized
	pos.Quantity -= closeQty

	if pos.Quantity == 0 {
		pos.Status = models.PositionStatusClosed
	} else if pos.MarginMode == models.MarginModeIsolated {
		// Маржа высвобождается пропорционально закрытой части
		fraction := closeQty / (pos.Quantity + closeQty)
		pos.IsolatedMargin -= pos.IsolatedMargin * fraction
	}

	return realized, nil
}

// TransferFuturesMargin изменяет isolated маржу позиции (amount может быть
// отрицательным - снятие) и пересчитывает цену ликвидации.
//
// Добавление маржи отодвигает ликвидацию от текущей цены: добавленная маржа
// пересчитывается в эквивалентное смещение через нотционал позиции.
func TransferFuturesMargin(pos *models.FuturesPosition, amount float64) error {
	if pos.Status != models.PositionStatusOpen {
		return ErrPositionClosed
	}
	if pos.MarginMode != models.MarginModeIsolated {
		return errors.New("margin transfer is only valid for isolated positions")
	}
	if amount < 0 && -amount >= pos.IsolatedMargin {
		return ErrMarginWithdrawTooLarge
	}

	pos.IsolatedMargin += amount

	// Смещение цены ликвидации: маржа на единицу позиции
	base := LiquidationPrice(pos.Side, pos.EntryPrice, pos.Leverage)
	initial := pos.EntryPrice * pos.Quantity / float64(pos.Leverage)
	extra := pos.IsolatedMargin - initial
	shift := 0.0
	if pos.Quantity > 0 {
		shift = extra / pos.Quantity
	}

	switch pos.Side {
	case models.PositionSideLong:
		pos.LiquidationPrice = base - shift
	case models.PositionSideShort:
		pos.LiquidationPrice = base + shift
	}
	return nil
}
