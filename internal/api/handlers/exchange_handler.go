package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cryptosim/internal/api/middleware"
	"cryptosim/internal/exchange"
	"cryptosim/internal/service"

	"github.com/gorilla/mux"
)

// ConnectExchangeRequest - тело запроса для привязки биржевого аккаунта
type ConnectExchangeRequest struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"` // для KuCoin
	Mirroring  bool   `json:"mirroring"`
}

// MirroringRequest - тело запроса переключения зеркалирования
type MirroringRequest struct {
	Enabled bool `json:"enabled"`
}

// ExchangeHandler отвечает за привязку реальных биржевых аккаунтов
//
// Endpoints:
// - GET /api/v1/exchanges - список привязанных аккаунтов
// - POST /api/v1/exchanges/{name}/credentials - привязать аккаунт
// - DELETE /api/v1/exchanges/{name}/credentials - отвязать аккаунт
// - PATCH /api/v1/exchanges/{name}/mirroring - включить/выключить зеркалирование
// - GET /api/v1/exchanges/{name}/balances - живые балансы с биржи
type ExchangeHandler struct {
	exchangeService service.ExchangeServiceInterface
}

// NewExchangeHandler создает новый ExchangeHandler
func NewExchangeHandler(exchangeService service.ExchangeServiceInterface) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService: exchangeService,
	}
}

// ConnectExchange привязывает биржевой аккаунт с API ключами.
// Ключи проверяются живым запросом к бирже и шифруются перед сохранением.
// POST /api/v1/exchanges/{name}/credentials
//
// Тело запроса:
//
//	{
//	  "api_key": "your-api-key",
//	  "api_secret": "your-api-secret",
//	  "passphrase": "optional",  // обязателен для KuCoin
//	  "mirroring": false
//	}
//
// Ответы:
// - 200 OK: аккаунт привязан (повторный вызов перезаписывает ключи)
// - 400 Bad Request: биржа не поддерживается или данные некорректны
// - 401 Unauthorized: биржа отвергла ключи
// - 502 Bad Gateway: биржа недоступна
func (h *ExchangeHandler) ConnectExchange(w http.ResponseWriter, r *http.Request) {
	exchangeName := strings.ToLower(mux.Vars(r)["name"])

	if !exchange.IsSupported(exchangeName) {
		respondWithError(w, http.StatusBadRequest, "Unsupported exchange", "Supported exchanges: "+strings.Join(exchange.SupportedExchanges(), ", "))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ConnectExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if req.APISecret == "" {
		respondWithError(w, http.StatusBadRequest, "API secret is required", "")
		return
	}

	// KuCoin требует passphrase
	if exchangeName == "kucoin" && req.Passphrase == "" {
		respondWithError(w, http.StatusBadRequest, "Passphrase is required for KuCoin", "")
		return
	}

	userID := middleware.UserFromContext(r.Context())
	account, err := h.exchangeService.ConnectExchange(r.Context(), userID, exchangeName, req.APIKey, req.APISecret, req.Passphrase, req.Mirroring)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotSupported):
			respondWithError(w, http.StatusBadRequest, "Exchange not supported", err.Error())
		// Проверка geo/network до общего ErrInvalidCredentials: сервис
		// оборачивает им любую ошибку валидации ключей
		case errors.Is(err, exchange.ErrGeoRestricted):
			respondWithError(w, http.StatusBadGateway, "Exchange is not reachable from this region", err.Error())
		case errors.Is(err, exchange.ErrNetwork):
			respondWithError(w, http.StatusBadGateway, "Failed to reach exchange", err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Invalid API credentials", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, account)
}

// DisconnectExchange отвязывает биржевой аккаунт и удаляет ключи
// DELETE /api/v1/exchanges/{name}/credentials
//
// Ответы:
// - 200 OK: аккаунт отвязан
// - 400 Bad Request: биржа не поддерживается
// - 404 Not Found: аккаунт не привязан
func (h *ExchangeHandler) DisconnectExchange(w http.ResponseWriter, r *http.Request) {
	exchangeName := strings.ToLower(mux.Vars(r)["name"])

	if !exchange.IsSupported(exchangeName) {
		respondWithError(w, http.StatusBadRequest, "Unsupported exchange", "Supported exchanges: "+strings.Join(exchange.SupportedExchanges(), ", "))
		return
	}

	userID := middleware.UserFromContext(r.Context())
	if err := h.exchangeService.DisconnectExchange(r.Context(), userID, exchangeName); err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotConnected):
			respondWithError(w, http.StatusNotFound, "Exchange is not connected", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Exchange disconnected"})
}

// SetMirroring включает или выключает зеркалирование ордеров на аккаунт
// PATCH /api/v1/exchanges/{name}/mirroring
//
// Тело запроса:
//
//	{"enabled": true}
//
// Ответы:
// - 200 OK
// - 404 Not Found: аккаунт не привязан
func (h *ExchangeHandler) SetMirroring(w http.ResponseWriter, r *http.Request) {
	exchangeName := strings.ToLower(mux.Vars(r)["name"])

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req MirroringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	userID := middleware.UserFromContext(r.Context())
	if err := h.exchangeService.SetMirroring(r.Context(), userID, exchangeName, req.Enabled); err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotConnected):
			respondWithError(w, http.StatusNotFound, "Exchange is not connected", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Mirroring updated"})
}

// GetExchanges возвращает привязанные аккаунты пользователя (без ключей)
// GET /api/v1/exchanges
func (h *ExchangeHandler) GetExchanges(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromContext(r.Context())

	accounts, err := h.exchangeService.ListAccounts(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get exchange accounts", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, accounts)
}

// GetExchangeBalances запрашивает живые балансы с привязанной биржи
// GET /api/v1/exchanges/{name}/balances
//
// Ответы:
// - 200 OK: список ненулевых балансов
// - 404 Not Found: аккаунт не привязан
// - 502 Bad Gateway: биржа недоступна или отвергла запрос
func (h *ExchangeHandler) GetExchangeBalances(w http.ResponseWriter, r *http.Request) {
	exchangeName := strings.ToLower(mux.Vars(r)["name"])

	userID := middleware.UserFromContext(r.Context())
	balances, err := h.exchangeService.GetBalances(r.Context(), userID, exchangeName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotConnected):
			respondWithError(w, http.StatusNotFound, "Exchange is not connected", "Connect the exchange first")
		case errors.Is(err, exchange.ErrUnauthorized):
			respondWithError(w, http.StatusUnauthorized, "Exchange rejected stored credentials", "Reconnect with fresh API keys")
		default:
			respondWithError(w, http.StatusBadGateway, "Failed to get balances from exchange", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, balances)
}
