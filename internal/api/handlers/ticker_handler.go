package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cryptosim/internal/service"

	"github.com/gorilla/mux"
)

// TickerHandler отдаёт текущий срез рынка из таблицы тикеров
//
// Endpoints:
// - GET /api/v1/tickers - все символы
// - GET /api/v1/tickers/{symbol} - один символ
type TickerHandler struct {
	tradingService service.TradingServiceInterface
}

// NewTickerHandler создает новый TickerHandler
func NewTickerHandler(tradingService service.TradingServiceInterface) *TickerHandler {
	return &TickerHandler{
		tradingService: tradingService,
	}
}

// GetTickers возвращает снимок цен по всем символам
// GET /api/v1/tickers
func (h *TickerHandler) GetTickers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.tradingService.ListTickers())
}

// GetTicker возвращает снимок цены одного символа
// GET /api/v1/tickers/{symbol}
//
// Ответы:
// - 200 OK
// - 404 Not Found: по символу нет рыночных данных
func (h *TickerHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	ticker, err := h.tradingService.GetTicker(symbol)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownSymbol):
			respondWithError(w, http.StatusNotFound, "Unknown symbol", "No market data for "+symbol)
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, ticker)
}
