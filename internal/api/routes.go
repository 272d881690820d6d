package api

import (
	"net/http"
	"net/http/pprof"

	"cryptosim/internal/api/handlers"
	"cryptosim/internal/api/middleware"
	"cryptosim/internal/service"
	"cryptosim/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	TradingService  *service.TradingService
	FuturesService  *service.FuturesService
	ExchangeService *service.ExchangeService
	AlertService    *service.AlertService
	Hub             *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /tickers/
//	│   ├── GET / - срез рынка по всем символам
//	│   └── GET /{symbol} - один символ
//	├── /orders/
//	│   ├── POST / - разместить ордер
//	│   ├── GET / - список ордеров
//	│   ├── GET /{id} - один ордер
//	│   └── DELETE /{id} - отменить pending ордер
//	├── /portfolio/ GET - спотовые позиции с PnL
//	├── /wallets/ GET - балансы кошельков
//	├── /futures/positions/
//	│   ├── POST / - открыть позицию
//	│   ├── GET / - открытые позиции
//	│   ├── POST /{id}/close - закрыть полностью или частично
//	│   └── POST /{id}/margin - перевести маржу
//	├── /exchanges/
//	│   ├── GET / - привязанные аккаунты
//	│   ├── POST /{name}/credentials - привязать аккаунт
//	│   ├── DELETE /{name}/credentials - отвязать аккаунт
//	│   ├── PATCH /{name}/mirroring - переключить зеркалирование
//	│   └── GET /{name}/balances - живые балансы
//	└── /alerts/
//	    ├── POST / - создать алерт
//	    ├── GET / - список алертов
//	    └── DELETE /{id} - удалить алерт
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /debug/pprof/* - профилирование (за DebugAuth)
// /health - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. UserID (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var tickerHandler *handlers.TickerHandler
	var orderHandler *handlers.OrderHandler
	var portfolioHandler *handlers.PortfolioHandler
	if deps != nil && deps.TradingService != nil {
		tickerHandler = handlers.NewTickerHandler(deps.TradingService)
		orderHandler = handlers.NewOrderHandler(deps.TradingService)
		portfolioHandler = handlers.NewPortfolioHandler(deps.TradingService)
	}

	var futuresHandler *handlers.FuturesHandler
	if deps != nil && deps.FuturesService != nil {
		futuresHandler = handlers.NewFuturesHandler(deps.FuturesService)
	}

	var exchangeHandler *handlers.ExchangeHandler
	if deps != nil && deps.ExchangeService != nil {
		exchangeHandler = handlers.NewExchangeHandler(deps.ExchangeService)
	}

	var alertHandler *handlers.AlertHandler
	if deps != nil && deps.AlertService != nil {
		alertHandler = handlers.NewAlertHandler(deps.AlertService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.UserID)

	// Ticker routes
	if tickerHandler != nil {
		api.HandleFunc("/tickers", tickerHandler.GetTickers).Methods("GET")
		api.HandleFunc("/tickers/{symbol}", tickerHandler.GetTicker).Methods("GET")
	}

	// Order routes
	if orderHandler != nil {
		api.HandleFunc("/orders", orderHandler.PlaceOrder).Methods("POST")
		api.HandleFunc("/orders", orderHandler.GetOrders).Methods("GET")
		api.HandleFunc("/orders/{id}", orderHandler.GetOrder).Methods("GET")
		api.HandleFunc("/orders/{id}", orderHandler.CancelOrder).Methods("DELETE")
	}

	// Portfolio routes
	if portfolioHandler != nil {
		api.HandleFunc("/portfolio", portfolioHandler.GetPortfolio).Methods("GET")
		api.HandleFunc("/wallets", portfolioHandler.GetWallets).Methods("GET")
	}

	// Futures routes
	if futuresHandler != nil {
		api.HandleFunc("/futures/positions", futuresHandler.OpenPosition).Methods("POST")
		api.HandleFunc("/futures/positions", futuresHandler.GetPositions).Methods("GET")
		api.HandleFunc("/futures/positions/{id}/close", futuresHandler.ClosePosition).Methods("POST")
		api.HandleFunc("/futures/positions/{id}/margin", futuresHandler.TransferMargin).Methods("POST")
	}

	// Exchange routes
	if exchangeHandler != nil {
		api.HandleFunc("/exchanges", exchangeHandler.GetExchanges).Methods("GET")
		api.HandleFunc("/exchanges/{name}/credentials", exchangeHandler.ConnectExchange).Methods("POST")
		api.HandleFunc("/exchanges/{name}/credentials", exchangeHandler.DisconnectExchange).Methods("DELETE")
		api.HandleFunc("/exchanges/{name}/mirroring", exchangeHandler.SetMirroring).Methods("PATCH")
		api.HandleFunc("/exchanges/{name}/balances", exchangeHandler.GetExchangeBalances).Methods("GET")
	}

	// Alert routes
	if alertHandler != nil {
		api.HandleFunc("/alerts", alertHandler.CreateAlert).Methods("POST")
		api.HandleFunc("/alerts", alertHandler.GetAlerts).Methods("GET")
		api.HandleFunc("/alerts/{id}", alertHandler.DeleteAlert).Methods("DELETE")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Профилирование за basic auth
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
