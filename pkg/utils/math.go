package utils

import (
	"math"
)

// math.go - математические утилиты симулятора
//
// Все функции чистые, без побочных эффектов.

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления объёма, рассчитанного из суммы в котируемой
// валюте. Округление вниз гарантирует, что объём не превысит оплаченный.
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// CalculateWeightedAverage расчитывает средневзвешенное значение (VWAP).
//
// Используется для пересчёта средней цены покупки позиции при докупке.
//
// Возвращает 0 если входные данные некорректны. Отрицательные веса
// пропускаются.
//
// Пример:
//
//	values  = [100.0, 101.0, 102.0]
//	weights = [10.0, 20.0, 10.0]
//	VWAP = (100*10 + 101*20 + 102*10) / (10+20+10) = 4040/40 = 101.0
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(weights) == 0 {
		return 0
	}
	if len(values) != len(weights) {
		return 0
	}

	var sumWeighted, sumWeights float64
	for i := range values {
		if weights[i] < 0 {
			continue
		}
		sumWeighted += values[i] * weights[i]
		sumWeights += weights[i]
	}

	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// CalculatePNL расчитывает прибыль/убыток по позиции.
//
// Формулы:
//   - Long PNL = (P_close - P_open) × qty
//   - Short PNL = (P_open - P_close) × qty
//
// Возвращает PNL в валюте котировки (обычно USDT).
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "long":
		// Лонг: прибыль если цена выросла
		return (currentPrice - entryPrice) * quantity
	case "short":
		// Шорт: прибыль если цена упала
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}
