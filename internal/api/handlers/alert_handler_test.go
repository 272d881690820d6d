package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/models"
	"cryptosim/internal/service"

	"github.com/gorilla/mux"
)

func newAlertRouter(svc service.AlertServiceInterface) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.UserID)
	h := NewAlertHandler(svc)
	router.HandleFunc("/alerts", h.CreateAlert).Methods("POST")
	router.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	router.HandleFunc("/alerts/{id}", h.DeleteAlert).Methods("DELETE")
	return router
}

func TestCreateAlertHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		router := newAlertRouter(NewMockAlertService())

		body := `{"symbol":"BTCUSDT","target_price":65000,"direction":"above"}`
		req := httptest.NewRequest("POST", "/alerts", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var alert models.PriceAlert
		if err := json.Unmarshal(rr.Body.Bytes(), &alert); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
		if alert.Symbol != "BTCUSDT" || !alert.IsActive {
			t.Errorf("unexpected alert: %+v", alert)
		}
	})

	t.Run("invalid parameters", func(t *testing.T) {
		svc := NewMockAlertService()
		svc.SetCreateError(service.ErrInvalidAlert)
		router := newAlertRouter(svc)

		body := `{"symbol":"BTCUSDT","target_price":0,"direction":"above"}`
		req := httptest.NewRequest("POST", "/alerts", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		svc := NewMockAlertService()
		svc.SetCreateError(service.ErrUnknownSymbol)
		router := newAlertRouter(svc)

		body := `{"symbol":"NOPEUSDT","target_price":100,"direction":"above"}`
		req := httptest.NewRequest("POST", "/alerts", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestDeleteAlertHandler(t *testing.T) {
	svc := NewMockAlertService()
	router := newAlertRouter(svc)

	body := `{"symbol":"BTCUSDT","target_price":65000,"direction":"above"}`
	req := httptest.NewRequest("POST", "/alerts", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("setup failed: %d", rr.Code)
	}

	t.Run("foreign alert hidden", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/alerts/1", nil)
		req.Header.Set("X-User-ID", "2")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404 for foreign alert, got %d", rr.Code)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/alerts/1", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("second delete fails", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/alerts/1", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/alerts/abc", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}
