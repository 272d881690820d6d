package marketdata

import (
	"math"
	"testing"
)

// TestParseRelayFrame проверяет разбор кадров relay
func TestParseRelayFrame(t *testing.T) {
	t.Run("status with upstream", func(t *testing.T) {
		frameType, _, upstream, err := parseRelayFrame([]byte(`{"type":"status","upstream":true}`))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if frameType != frameStatus || !upstream {
			t.Errorf("expected status frame with upstream, got type=%s upstream=%v", frameType, upstream)
		}
	})

	t.Run("status without upstream", func(t *testing.T) {
		frameType, _, upstream, err := parseRelayFrame([]byte(`{"type":"status","upstream":false}`))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if frameType != frameStatus || upstream {
			t.Errorf("expected status frame without upstream, got type=%s upstream=%v", frameType, upstream)
		}
	})

	t.Run("ticker frame", func(t *testing.T) {
		raw := []byte(`{"type":"ticker","data":{"symbol":"BTCUSDT","last_price":60000,"open_price":58000,"high_price":61000,"low_price":57500,"volume":1234.5,"quote_volume":71000000,"change_percent":3.45}}`)
		frameType, ticker, _, err := parseRelayFrame(raw)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if frameType != frameTicker {
			t.Fatalf("expected ticker frame, got %s", frameType)
		}
		if ticker.Symbol != "BTCUSDT" || ticker.LastPrice != 60000 {
			t.Errorf("unexpected ticker: %+v", ticker)
		}
		if ticker.UpdatedAt.IsZero() {
			t.Error("UpdatedAt must be set on parse")
		}
	})

	t.Run("unknown frame type ignored", func(t *testing.T) {
		frameType, _, _, err := parseRelayFrame([]byte(`{"type":"heartbeat"}`))
		if err != nil {
			t.Fatalf("unknown frame type must not error: %v", err)
		}
		if frameType != "heartbeat" {
			t.Errorf("unexpected frame type: %s", frameType)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, _, _, err := parseRelayFrame([]byte(`not json`)); err == nil {
			t.Error("expected error on garbage input")
		}
	})
}

// TestParseUpstreamFrame проверяет разбор combined stream кадров Binance
func TestParseUpstreamFrame(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@miniTicker","data":{"s":"BTCUSDT","c":"60900","o":"58000","h":"61000","l":"57500","v":"1234.5","q":"71000000"}}`)

	ticker, ok := parseUpstreamFrame(raw)
	if !ok {
		t.Fatal("expected valid frame")
	}
	if ticker.Symbol != "BTCUSDT" {
		t.Errorf("unexpected symbol: %s", ticker.Symbol)
	}
	if ticker.LastPrice != 60900 || ticker.OpenPrice != 58000 {
		t.Errorf("unexpected prices: last=%v open=%v", ticker.LastPrice, ticker.OpenPrice)
	}

	wantChange := (60900.0 - 58000.0) / 58000.0 * 100
	if math.Abs(ticker.ChangePercent-wantChange) > 1e-9 {
		t.Errorf("change percent = %v, want %v", ticker.ChangePercent, wantChange)
	}
}

// TestParseUpstreamFrameInvalid: мусор и кадры без символа отбрасываются
func TestParseUpstreamFrameInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not json"},
		{"empty object", "{}"},
		{"no symbol", `{"stream":"x","data":{"c":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseUpstreamFrame([]byte(tt.raw)); ok {
				t.Error("expected frame to be rejected")
			}
		})
	}
}
