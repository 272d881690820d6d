package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/service"

	"github.com/gorilla/mux"
)

// CreateAlertRequest - тело запроса на создание ценового алерта
type CreateAlertRequest struct {
	Symbol      string  `json:"symbol"`
	TargetPrice float64 `json:"target_price"`
	Direction   string  `json:"direction"` // above, below
}

// AlertHandler отвечает за ценовые алерты
//
// Endpoints:
// - POST /api/v1/alerts - создать алерт
// - GET /api/v1/alerts - список алертов пользователя
// - DELETE /api/v1/alerts/{id} - удалить алерт
type AlertHandler struct {
	alertService service.AlertServiceInterface
}

// NewAlertHandler создает новый AlertHandler
func NewAlertHandler(alertService service.AlertServiceInterface) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
	}
}

// CreateAlert создает ценовой алерт
// POST /api/v1/alerts
//
// Тело запроса:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "target_price": 65000,
//	  "direction": "above"
//	}
//
// Ответы:
// - 201 Created
// - 400 Bad Request: некорректные параметры или неизвестный символ
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	userID := middleware.UserFromContext(r.Context())
	alert, err := h.alertService.CreateAlert(r.Context(), userID, req.Symbol, req.TargetPrice, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAlert):
			respondWithError(w, http.StatusBadRequest, "Invalid alert parameters", err.Error())
		case errors.Is(err, service.ErrUnknownSymbol):
			respondWithError(w, http.StatusBadRequest, "Unknown symbol", "No market data for the requested symbol")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, alert)
}

// GetAlerts возвращает алерты пользователя
// GET /api/v1/alerts
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	alerts, err := h.alertService.ListAlerts(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get alerts", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, alerts)
}

// DeleteAlert удаляет алерт пользователя
// DELETE /api/v1/alerts/{id}
//
// Ответы:
// - 200 OK
// - 404 Not Found: алерт не существует или принадлежит другому пользователю
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid alert id", "")
		return
	}

	userID := middleware.UserFromContext(r.Context())
	if err := h.alertService.DeleteAlert(r.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, service.ErrAlertNotFound):
			respondWithError(w, http.StatusNotFound, "Alert not found", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Alert deleted"})
}
