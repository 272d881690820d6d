// Package marketdata поставляет живые рыночные данные: WebSocket relay с
// fallback на прямое подключение к бирже и процессная таблица тикеров.
package marketdata

import (
	"sync"

	"cryptosim/internal/models"
)

// TickerTable - процессная таблица тикеров symbol -> Ticker.
//
// Единственные разделяемые между пользователями данные в системе.
// Обновления применяются last-write-wins по порядку прихода: порядок
// гарантируется только в пределах одного символа.
type TickerTable struct {
	mu      sync.RWMutex
	tickers map[string]models.Ticker
}

// NewTickerTable создаёт пустую таблицу тикеров
func NewTickerTable() *TickerTable {
	return &TickerTable{
		tickers: make(map[string]models.Ticker),
	}
}

// Set сохраняет тикер, полностью заменяя предыдущее значение
func (t *TickerTable) Set(ticker models.Ticker) {
	t.mu.Lock()
	t.tickers[ticker.Symbol] = ticker
	t.mu.Unlock()
}

// Get возвращает тикер по символу
func (t *TickerTable) Get(symbol string) (models.Ticker, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ticker, ok := t.tickers[symbol]
	return ticker, ok
}

// Price возвращает последнюю цену символа (0 если тикера ещё нет)
func (t *TickerTable) Price(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tickers[symbol].LastPrice
}

// List возвращает снимок всех тикеров
func (t *TickerTable) List() []models.Ticker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.Ticker, 0, len(t.tickers))
	for _, ticker := range t.tickers {
		result = append(result, ticker)
	}
	return result
}

// Len возвращает количество символов в таблице
func (t *TickerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tickers)
}
