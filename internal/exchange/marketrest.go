package exchange

import (
	"context"
	"io"
	"net/http"
	"time"
)

const tickerSnapshotEndpoint = "/api/v3/ticker/24hr"

// MarketDataClient - публичный (без подписи) REST клиент рыночных данных.
// Резервный источник тикеров на случай, когда оба WebSocket транспорта
// лежат. Все запросы идут через PriceCache: свежий снимок отдаётся из
// кэша без сетевого вызова, при сетевой ошибке вместо ошибки отдаются
// устаревшие данные.
type MarketDataClient struct {
	httpClient *http.Client
	cache      *PriceCache
	base       string
}

// NewMarketDataClient создаёт клиент рыночных данных Binance.
// Публичные endpoint'ы не зависят от региона ключа, база фиксированная.
func NewMarketDataClient() *MarketDataClient {
	return NewMarketDataClientWithBase(binanceGlobalURL)
}

// NewMarketDataClientWithBase создаёт клиент с указанной базой (тесты)
func NewMarketDataClientWithBase(base string) *MarketDataClient {
	return &MarketDataClient{
		httpClient: GetGlobalHTTPClient().GetClient(),
		cache:      NewPriceCache(),
		base:       base,
	}
}

// TickerSnapshot возвращает сырой 24h снимок всех тикеров биржи.
// TTL задаёт вызывающий: срок свежести кэша равен интервалу опроса.
func (c *MarketDataClient) TickerSnapshot(ctx context.Context, ttl time.Duration) ([]byte, error) {
	reqURL := c.base + tickerSnapshotEndpoint

	return c.cache.Get(ctx, reqURL, ttl, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &ExchangeError{Exchange: "binance", Message: err.Error(), Class: ErrNetwork}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ExchangeError{Exchange: "binance", Message: err.Error(), Class: ErrNetwork}
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &ExchangeError{
				Exchange:   "binance",
				Message:    string(body),
				HTTPStatus: resp.StatusCode,
				Class:      classifyHTTP(resp.StatusCode),
			}
		}

		return body, nil
	})
}
