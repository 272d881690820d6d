package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const snapshotBody = `[{"symbol":"BTCUSDT","lastPrice":"60000.0","openPrice":"59000.0","priceChangePercent":"1.69"}]`

// TestMarketDataClientCachesSnapshot: повторный запрос внутри TTL
// отдаётся из кэша без сетевого вызова
func TestMarketDataClientCachesSnapshot(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != tickerSnapshotEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(snapshotBody))
	}))
	defer srv.Close()

	client := NewMarketDataClientWithBase(srv.URL)

	for i := 0; i < 3; i++ {
		payload, err := client.TickerSnapshot(context.Background(), time.Minute)
		if err != nil {
			t.Fatalf("TickerSnapshot failed: %v", err)
		}
		if string(payload) != snapshotBody {
			t.Errorf("unexpected payload: %s", payload)
		}
	}

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected 1 upstream request, got %d", n)
	}
}

// TestMarketDataClientServesStaleOnError: после сбоя сервера отдаются
// ранее закэшированные данные
func TestMarketDataClientServesStaleOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(snapshotBody))
	}))
	defer srv.Close()

	client := NewMarketDataClientWithBase(srv.URL)

	ttl := 5 * time.Millisecond
	if _, err := client.TickerSnapshot(context.Background(), ttl); err != nil {
		t.Fatalf("initial TickerSnapshot failed: %v", err)
	}

	fail.Store(true)
	time.Sleep(2 * ttl)

	payload, err := client.TickerSnapshot(context.Background(), ttl)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if string(payload) != snapshotBody {
		t.Errorf("expected stale payload, got %s", payload)
	}
}

// TestMarketDataClientClassifiesError: пустой кэш - ошибка всплывает
// с классом по HTTP статусу
func TestMarketDataClientClassifiesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}))
	defer srv.Close()

	client := NewMarketDataClientWithBase(srv.URL)

	_, err := client.TickerSnapshot(context.Background(), time.Minute)
	if !IsGeoRestricted(err) {
		t.Errorf("expected geo-restricted classification, got %v", err)
	}
}
