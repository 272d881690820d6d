package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

// TestDetectPrefersFunds проверяет что база с ненулевыми средствами выигрывает
func TestDetectPrefersFunds(t *testing.T) {
	var probes int32
	probe := func(ctx context.Context, base string, creds Credentials) (probeResult, error) {
		atomic.AddInt32(&probes, 1)
		if base == "https://b.example" {
			return probeOKWithFunds, nil
		}
		return probeOKNoFunds, nil
	}

	d := NewPlatformDetector([]string{"https://a.example", "https://b.example"}, probe)
	creds := Credentials{APIKey: "key-with-funds-on-b"}

	base, err := d.Detect(context.Background(), creds)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if base != "https://b.example" {
		t.Errorf("expected base with funds, got %s", base)
	}

	// Повторный вызов должен идти из кэша без новых проб
	before := atomic.LoadInt32(&probes)
	base2, err := d.Detect(context.Background(), creds)
	if err != nil {
		t.Fatalf("cached Detect failed: %v", err)
	}
	if base2 != base {
		t.Errorf("cached base mismatch: got %s, want %s", base2, base)
	}
	if atomic.LoadInt32(&probes) != before {
		t.Error("cached Detect should not probe again")
	}
}

// TestDetectAuthenticatedFallback: без средств выбирается любая аутентифицированная база
func TestDetectAuthenticatedFallback(t *testing.T) {
	probe := func(ctx context.Context, base string, creds Credentials) (probeResult, error) {
		if base == "https://a.example" {
			return probeFailed, &ExchangeError{Exchange: "binance", HTTPStatus: 401, Class: ErrUnauthorized}
		}
		return probeOKNoFunds, nil
	}

	d := NewPlatformDetector([]string{"https://a.example", "https://b.example"}, probe)

	base, err := d.Detect(context.Background(), Credentials{APIKey: "empty-account-key"})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if base != "https://b.example" {
		t.Errorf("expected authenticated base, got %s", base)
	}
}

// TestDetectAllFailed: при полном провале возвращается primary база
// и самая информативная ошибка (гео-блокировка приоритетнее невалидных ключей)
func TestDetectAllFailed(t *testing.T) {
	probe := func(ctx context.Context, base string, creds Credentials) (probeResult, error) {
		if base == "https://a.example" {
			return probeFailed, &ExchangeError{Exchange: "binance", HTTPStatus: 451, Class: ErrGeoRestricted}
		}
		return probeFailed, &ExchangeError{Exchange: "binance", HTTPStatus: 401, Class: ErrUnauthorized}
	}

	d := NewPlatformDetector([]string{"https://a.example", "https://b.example"}, probe)

	base, err := d.Detect(context.Background(), Credentials{APIKey: "blocked-key"})
	if base != "https://a.example" {
		t.Errorf("expected primary base as fallback, got %s", base)
	}
	if !IsGeoRestricted(err) {
		t.Errorf("expected geo-restricted error, got %v", err)
	}

	// Провал не должен кэшироваться
	d.cacheMu.RLock()
	_, cached := d.cache["blocked-key"]
	d.cacheMu.RUnlock()
	if cached {
		t.Error("failed detection must not be cached")
	}
}

// TestDetectInvalidate проверяет сброс кэша при замене ключей
func TestDetectInvalidate(t *testing.T) {
	var probes int32
	probe := func(ctx context.Context, base string, creds Credentials) (probeResult, error) {
		atomic.AddInt32(&probes, 1)
		return probeOKWithFunds, nil
	}

	d := NewPlatformDetector([]string{"https://a.example"}, probe)
	creds := Credentials{APIKey: "rotating-key"}

	if _, err := d.Detect(context.Background(), creds); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	d.Invalidate(creds.APIKey)
	if _, err := d.Detect(context.Background(), creds); err != nil {
		t.Fatalf("Detect after Invalidate failed: %v", err)
	}

	if got := atomic.LoadInt32(&probes); got != 2 {
		t.Errorf("expected 2 probes after invalidate, got %d", got)
	}
}

// TestDetectContextCancel: отменённый контекст не должен зависать
func TestDetectContextCancel(t *testing.T) {
	probe := func(ctx context.Context, base string, creds Credentials) (probeResult, error) {
		<-ctx.Done()
		return probeFailed, ctx.Err()
	}

	d := NewPlatformDetector([]string{"https://a.example"}, probe)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, Credentials{APIKey: "any"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
