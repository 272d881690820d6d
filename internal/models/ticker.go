package models

import "time"

// Ticker представляет текущее состояние рынка по одному символу.
// Эфемерные данные: каждое обновление полностью заменяет предыдущее (last-write-wins).
type Ticker struct {
	Symbol        string    `json:"symbol"`
	LastPrice     float64   `json:"last_price"`
	OpenPrice     float64   `json:"open_price"`
	HighPrice     float64   `json:"high_price"`
	LowPrice      float64   `json:"low_price"`
	Volume        float64   `json:"volume"`
	QuoteVolume   float64   `json:"quote_volume"`
	ChangePercent float64   `json:"change_percent"`
	UpdatedAt     time.Time `json:"updated_at"`
}
