package marketdata

import (
	"context"
	"log"
	"time"

	"cryptosim/internal/models"
)

// SnapshotFetcher отдаёт сырой REST снимок тикеров.
// Реализуется exchange.MarketDataClient.
type SnapshotFetcher interface {
	TickerSnapshot(ctx context.Context, ttl time.Duration) ([]byte, error)
}

// StateSource отдаёт состояние WebSocket источника. Реализуется Relay.
type StateSource interface {
	State() RelayState
}

// RESTPoller - резервный REST источник тикеров.
//
// Пока у Relay нет живого транспорта, периодически забирает снимок рынка
// и заполняет таблицу: REST API и WebSocket клиенты продолжают видеть
// цены во время переподключения. Движок симуляции при этом стоит,
// поток тиков возобновляется вместе с WebSocket соединением.
type RESTPoller struct {
	source   StateSource
	fetcher  SnapshotFetcher
	table    *TickerTable
	interval time.Duration
}

// NewRESTPoller создаёт резервный REST источник поверх таблицы тикеров
func NewRESTPoller(source StateSource, fetcher SnapshotFetcher, table *TickerTable, interval time.Duration) *RESTPoller {
	return &RESTPoller{
		source:   source,
		fetcher:  fetcher,
		table:    table,
		interval: interval,
	}
}

// Run опрашивает снимок рынка до закрытия done
func (p *RESTPoller) Run(done <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll выполняет один проход. При живом WebSocket транспорте - no-op:
// REST снимок грубее потока и не должен перетирать его данные.
func (p *RESTPoller) poll() {
	state := p.source.State()
	if state == StateRelayConnected || state == StateDegraded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	payload, err := p.fetcher.TickerSnapshot(ctx, p.interval)
	if err != nil {
		log.Printf("[restpoll] snapshot fetch failed: %v", err)
		return
	}

	tickers, err := parseRestSnapshot(payload)
	if err != nil {
		log.Printf("[restpoll] bad snapshot payload: %v", err)
		return
	}

	for _, ticker := range tickers {
		p.table.Set(ticker)
	}
	log.Printf("[restpoll] seeded %d tickers from REST snapshot", len(tickers))
}

// restTicker - элемент ответа /api/v3/ticker/24hr
type restTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// parseRestSnapshot разбирает REST снимок в канонические тикеры
func parseRestSnapshot(raw []byte) ([]models.Ticker, error) {
	var items []restTicker
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	now := time.Now()
	tickers := make([]models.Ticker, 0, len(items))
	for _, item := range items {
		if item.Symbol == "" {
			continue
		}
		tickers = append(tickers, models.Ticker{
			Symbol:        item.Symbol,
			LastPrice:     parsePrice(item.LastPrice),
			OpenPrice:     parsePrice(item.OpenPrice),
			HighPrice:     parsePrice(item.HighPrice),
			LowPrice:      parsePrice(item.LowPrice),
			Volume:        parsePrice(item.Volume),
			QuoteVolume:   parsePrice(item.QuoteVolume),
			ChangePercent: parsePrice(item.PriceChangePercent),
			UpdatedAt:     now,
		})
	}
	return tickers, nil
}
