package handlers

import (
	"net/http"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/service"
)

// PortfolioHandler отдаёт спотовый портфель и балансы кошельков
//
// Endpoints:
// - GET /api/v1/portfolio - позиции с расчётным PnL по текущим ценам
// - GET /api/v1/wallets - балансы по валютам
type PortfolioHandler struct {
	tradingService service.TradingServiceInterface
}

// NewPortfolioHandler создает новый PortfolioHandler
func NewPortfolioHandler(tradingService service.TradingServiceInterface) *PortfolioHandler {
	return &PortfolioHandler{
		tradingService: tradingService,
	}
}

// GetPortfolio возвращает спотовые позиции пользователя
// GET /api/v1/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	positions, err := h.tradingService.GetPortfolio(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get portfolio", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, positions)
}

// GetWallets возвращает балансы кошельков пользователя
// GET /api/v1/wallets
func (h *PortfolioHandler) GetWallets(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	wallets, err := h.tradingService.GetWallets(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get wallets", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, wallets)
}
