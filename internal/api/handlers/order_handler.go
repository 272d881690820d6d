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

// OrderHandler отвечает за симулируемые спотовые ордера
//
// Endpoints:
// - POST /api/v1/orders - разместить ордер
// - GET /api/v1/orders - список ордеров пользователя
// - GET /api/v1/orders/{id} - один ордер
// - DELETE /api/v1/orders/{id} - отменить pending ордер
type OrderHandler struct {
	tradingService service.TradingServiceInterface
}

// NewOrderHandler создает новый OrderHandler
func NewOrderHandler(tradingService service.TradingServiceInterface) *OrderHandler {
	return &OrderHandler{
		tradingService: tradingService,
	}
}

// PlaceOrder размещает ордер
// POST /api/v1/orders
//
// Тело запроса:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "side": "buy",
//	  "type": "market",       // market, limit, stop
//	  "quantity": 0.5,
//	  "quote_amount": 500,    // альтернатива quantity для market buy
//	  "limit_price": 60000,   // для limit
//	  "stop_price": 58000     // для stop
//	}
//
// Ответы:
// - 201 Created: ордер размещен (market - исполнен, limit/stop - pending)
// - 400 Bad Request: некорректные параметры или неизвестный символ
// - 402 Payment Required: недостаточно средств
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req service.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.UserID = middleware.UserFromContext(r.Context())

	trade, err := h.tradingService.PlaceOrder(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrder):
			respondWithError(w, http.StatusBadRequest, "Invalid order parameters", err.Error())
		case errors.Is(err, service.ErrUnknownSymbol):
			respondWithError(w, http.StatusBadRequest, "Unknown symbol", "No market data for the requested symbol")
		case errors.Is(err, service.ErrInsufficientFunds):
			respondWithError(w, http.StatusPaymentRequired, "Insufficient funds", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, trade)
}

// GetOrders возвращает все ордера пользователя
// GET /api/v1/orders
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	orders, err := h.tradingService.ListOrders(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get orders", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает один ордер пользователя
// GET /api/v1/orders/{id}
//
// Ответы:
// - 200 OK
// - 404 Not Found: ордер не существует или принадлежит другому пользователю
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id", "")
		return
	}
	userID := middleware.UserFromContext(r.Context())

	order, err := h.tradingService.GetOrder(r.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// CancelOrder отменяет pending ордер
// DELETE /api/v1/orders/{id}
//
// Ответы:
// - 200 OK: ордер отменен
// - 404 Not Found: ордер не существует или принадлежит другому пользователю
// - 409 Conflict: ордер уже исполнен или отменен
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id", "")
		return
	}
	userID := middleware.UserFromContext(r.Context())

	if err := h.tradingService.CancelOrder(r.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found", "")
		case errors.Is(err, service.ErrOrderNotCancellable):
			respondWithError(w, http.StatusConflict, "Order is not cancellable", "Only pending orders can be cancelled")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Order cancelled"})
}
