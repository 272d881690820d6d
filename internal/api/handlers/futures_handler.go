package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/models"
	"cryptosim/internal/service"
	"cryptosim/internal/sim"

	"github.com/gorilla/mux"
)

// ClosePositionRequest - тело запроса на закрытие позиции.
// Quantity <= 0 или отсутствие тела означает полное закрытие.
type ClosePositionRequest struct {
	Quantity float64 `json:"quantity,omitempty"`
}

// TransferMarginRequest - тело запроса на перевод маржи.
// Положительный Amount добавляет маржу из кошелька, отрицательный выводит.
type TransferMarginRequest struct {
	Amount float64 `json:"amount"`
}

// FuturesHandler отвечает за симулируемые фьючерсные позиции
//
// Endpoints:
// - POST /api/v1/futures/positions - открыть позицию
// - GET /api/v1/futures/positions - открытые позиции с PnL и ROE
// - POST /api/v1/futures/positions/{id}/close - закрыть полностью или частично
// - POST /api/v1/futures/positions/{id}/margin - перевести маржу
type FuturesHandler struct {
	futuresService service.FuturesServiceInterface
}

// NewFuturesHandler создает новый FuturesHandler
func NewFuturesHandler(futuresService service.FuturesServiceInterface) *FuturesHandler {
	return &FuturesHandler{
		futuresService: futuresService,
	}
}

// OpenPosition открывает фьючерсную позицию по текущей рыночной цене
// POST /api/v1/futures/positions
//
// Тело запроса:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "side": "long",            // long, short
//	  "quantity": 0.5,
//	  "leverage": 10,            // 1..125
//	  "margin_mode": "isolated"  // isolated (default), cross
//	}
//
// Ответы:
// - 201 Created
// - 400 Bad Request: некорректные параметры или неизвестный символ
// - 402 Payment Required: не хватает средств на isolated маржу
func (h *FuturesHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req service.OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.UserID = middleware.UserFromContext(r.Context())

	if req.Quantity <= 0 {
		respondWithError(w, http.StatusBadRequest, "Quantity must be positive", "")
		return
	}
	if req.Side != models.PositionSideLong && req.Side != models.PositionSideShort {
		respondWithError(w, http.StatusBadRequest, "Invalid position side", "Side must be long or short")
		return
	}

	pos, err := h.futuresService.OpenPosition(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownSymbol):
			respondWithError(w, http.StatusBadRequest, "Unknown symbol", "No market data for the requested symbol")
		case errors.Is(err, sim.ErrInvalidLeverage):
			respondWithError(w, http.StatusBadRequest, "Invalid leverage", err.Error())
		case errors.Is(err, service.ErrInsufficientFunds):
			respondWithError(w, http.StatusPaymentRequired, "Insufficient funds for margin", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, pos)
}

// GetPositions возвращает открытые позиции пользователя с расчётными полями
// GET /api/v1/futures/positions
func (h *FuturesHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	positions, err := h.futuresService.ListPositions(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get positions", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, positions)
}

// ClosePosition закрывает позицию полностью или частично по текущей цене
// POST /api/v1/futures/positions/{id}/close
//
// Ответы:
// - 200 OK: позиция (или её часть) закрыта
// - 400 Bad Request: количество превышает размер позиции
// - 404 Not Found: позиция не существует или принадлежит другому пользователю
// - 409 Conflict: позиция уже закрыта
func (h *FuturesHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid position id", "")
		return
	}
	userID := middleware.UserFromContext(r.Context())

	// Тело опционально: без него позиция закрывается целиком
	var req ClosePositionRequest
	if r.Body != nil && r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	pos, err := h.futuresService.ClosePosition(r.Context(), userID, id, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPositionNotFound):
			respondWithError(w, http.StatusNotFound, "Position not found", "")
		case errors.Is(err, sim.ErrPositionClosed):
			respondWithError(w, http.StatusConflict, "Position is already closed", "")
		case errors.Is(err, sim.ErrInvalidCloseQuantity):
			respondWithError(w, http.StatusBadRequest, "Close quantity exceeds position quantity", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, pos)
}

// TransferMargin добавляет или выводит isolated маржу позиции
// POST /api/v1/futures/positions/{id}/margin
//
// Тело запроса:
//
//	{"amount": 500}   // добавить 500 из кошелька
//	{"amount": -500}  // вывести 500 в кошелёк
//
// Ответы:
// - 200 OK: обновленная позиция с пересчитанной ценой ликвидации
// - 400 Bad Request: вывод превышает маржу, cross позиция или нулевая сумма
// - 402 Payment Required: не хватает средств на добавление
// - 404 Not Found: позиция не существует или принадлежит другому пользователю
// - 409 Conflict: позиция уже закрыта
func (h *FuturesHandler) TransferMargin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid position id", "")
		return
	}
	userID := middleware.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req TransferMarginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Amount == 0 {
		respondWithError(w, http.StatusBadRequest, "Amount must be non-zero", "")
		return
	}

	pos, err := h.futuresService.TransferMargin(r.Context(), userID, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPositionNotFound):
			respondWithError(w, http.StatusNotFound, "Position not found", "")
		case errors.Is(err, sim.ErrPositionClosed):
			respondWithError(w, http.StatusConflict, "Position is already closed", "")
		case errors.Is(err, sim.ErrMarginWithdrawTooLarge):
			respondWithError(w, http.StatusBadRequest, "Withdrawal exceeds isolated margin", err.Error())
		case errors.Is(err, service.ErrInsufficientFunds):
			respondWithError(w, http.StatusPaymentRequired, "Insufficient funds", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, pos)
}
