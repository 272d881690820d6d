package exchange

import (
	"context"
	"log"
	"sync"
	"time"
)

// FetchFunc выполняет сетевой вызов при промахе кэша
type FetchFunc func(ctx context.Context) ([]byte, error)

type cacheEntry struct {
	payload   []byte
	fetchedAt time.Time // монотонные часы: time.Now() в Go их содержит
}

// PriceCache - короткоживущий кэш read-only рыночных запросов (тикеры, OHLC).
//
// Ключ - сигнатура запроса (URL с параметрами), TTL задаётся на каждый вызов.
// При сетевой ошибке отдаёт устаревшие данные вместо ошибки: потребители
// деградируют плавно, а не падают. Ошибка всплывает только при пустом кэше.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewPriceCache создаёт новый кэш рыночных данных
func NewPriceCache() *PriceCache {
	return &PriceCache{
		entries: make(map[string]cacheEntry),
	}
}

// Get возвращает данные по сигнатуре запроса.
// Свежая запись отдаётся из кэша, иначе выполняется fetch.
func (c *PriceCache) Get(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < ttl {
		return entry.payload, nil
	}

	payload, err := fetch(ctx)
	if err != nil {
		if ok {
			// Устаревшие данные лучше ошибки: логируем и отдаём что есть
			log.Printf("[pricecache] fetch failed for %s, serving stale data: %v", key, err)
			return entry.payload, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: payload, fetchedAt: time.Now()}
	c.mu.Unlock()

	return payload, nil
}

// Invalidate удаляет запись по сигнатуре
func (c *PriceCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear очищает весь кэш
func (c *PriceCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
