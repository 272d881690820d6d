package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/exchange"
	"cryptosim/internal/service"

	"github.com/gorilla/mux"
)

func newExchangeRouter(svc service.ExchangeServiceInterface) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.UserID)
	h := NewExchangeHandler(svc)
	router.HandleFunc("/exchanges", h.GetExchanges).Methods("GET")
	router.HandleFunc("/exchanges/{name}/credentials", h.ConnectExchange).Methods("POST")
	router.HandleFunc("/exchanges/{name}/credentials", h.DisconnectExchange).Methods("DELETE")
	router.HandleFunc("/exchanges/{name}/mirroring", h.SetMirroring).Methods("PATCH")
	router.HandleFunc("/exchanges/{name}/balances", h.GetExchangeBalances).Methods("GET")
	return router
}

func TestConnectExchangeHandler(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		body := `{"api_key":"key","api_secret":"secret","mirroring":true}`
		req := httptest.NewRequest("POST", "/exchanges/binance/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unsupported exchange", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		body := `{"api_key":"key","api_secret":"secret"}`
		req := httptest.NewRequest("POST", "/exchanges/bitmex/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		body := `{"api_secret":"secret"}`
		req := httptest.NewRequest("POST", "/exchanges/binance/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("kucoin requires passphrase", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		body := `{"api_key":"key","api_secret":"secret"}`
		req := httptest.NewRequest("POST", "/exchanges/kucoin/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetConnectError(errors.Join(service.ErrInvalidCredentials, exchange.ErrUnauthorized))
		router := newExchangeRouter(svc)

		body := `{"api_key":"bad","api_secret":"bad"}`
		req := httptest.NewRequest("POST", "/exchanges/binance/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("geo restriction maps to bad gateway", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetConnectError(errors.Join(service.ErrInvalidCredentials, exchange.ErrGeoRestricted))
		router := newExchangeRouter(svc)

		body := `{"api_key":"key","api_secret":"secret"}`
		req := httptest.NewRequest("POST", "/exchanges/binance/credentials", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rr.Code)
		}
	})
}

func TestDisconnectExchangeHandler(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		req := httptest.NewRequest("DELETE", "/exchanges/binance/credentials", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetDisconnectError(service.ErrExchangeNotConnected)
		router := newExchangeRouter(svc)

		req := httptest.NewRequest("DELETE", "/exchanges/kraken/credentials", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestSetMirroringHandler(t *testing.T) {
	t.Run("toggled", func(t *testing.T) {
		router := newExchangeRouter(NewMockExchangeService())

		req := httptest.NewRequest("PATCH", "/exchanges/binance/mirroring", strings.NewReader(`{"enabled":true}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetMirroringError(service.ErrExchangeNotConnected)
		router := newExchangeRouter(svc)

		req := httptest.NewRequest("PATCH", "/exchanges/binance/mirroring", strings.NewReader(`{"enabled":true}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestGetExchangeBalancesHandler(t *testing.T) {
	t.Run("balances returned", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.balances = []exchange.Balance{{Currency: "USDT", Available: 100, Total: 100}}
		router := newExchangeRouter(svc)

		req := httptest.NewRequest("GET", "/exchanges/binance/balances", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetBalancesError(service.ErrExchangeNotConnected)
		router := newExchangeRouter(svc)

		req := httptest.NewRequest("GET", "/exchanges/binance/balances", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("exchange unreachable", func(t *testing.T) {
		svc := NewMockExchangeService()
		svc.SetBalancesError(exchange.ErrNetwork)
		router := newExchangeRouter(svc)

		req := httptest.NewRequest("GET", "/exchanges/binance/balances", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rr.Code)
		}
	})
}
