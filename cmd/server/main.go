package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptosim/internal/api"
	"cryptosim/internal/config"
	"cryptosim/internal/exchange"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/repository"
	"cryptosim/internal/service"
	"cryptosim/internal/sim"
	"cryptosim/internal/websocket"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// .env опционален, в production конфигурация приходит из окружения
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database %s", cfg.Database.DSNWithoutPassword())

	// Репозитории
	tradeRepo := repository.NewTradeRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	futuresRepo := repository.NewFuturesRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	// Рыночные данные: relay с fallback на прямое подключение к бирже
	table := marketdata.NewTickerTable()
	relayCfg := marketdata.DefaultRelayConfig(cfg.Market.RelayURL, cfg.Market.UpstreamURL)
	relayCfg.ConnectTimeout = cfg.Market.ConnectTimeout
	relayCfg.RelayRetryDelay = cfg.Market.RelayRetryDelay
	relayCfg.DirectRetryDelay = cfg.Market.DirectRetryDelay
	relayCfg.HealthInterval = cfg.Market.HealthInterval
	relayCfg.DataTimeout = cfg.Market.DataTimeout
	relay := marketdata.NewRelay(relayCfg, table)
	relay.Start()

	// Резервный REST источник: пока оба WS транспорта лежат, таблица
	// тикеров заполняется снимками через PriceCache
	restClient := exchange.NewMarketDataClient()
	poller := marketdata.NewRESTPoller(relay, restClient, table, cfg.Market.RESTPollInterval)
	pollDone := make(chan struct{})
	go poller.Run(pollDone)

	// WebSocket hub: рассылка цен, исполнений и алертов в UI
	hub := websocket.NewHub()
	go hub.Run()

	streamDone := make(chan struct{})
	go hub.StreamTickers(streamDone, table, cfg.Market.TickerBroadcastFreq)

	// Движок симуляции исполняет отложенные ордера на живых тиках
	engineCtx, stopEngine := context.WithCancel(context.Background())
	engine := sim.NewEngine(tradeRepo, walletRepo, portfolioRepo, alertRepo, hub, relay.Ticks())
	go engine.Run(engineCtx)

	// Сервисы
	exchangeService := service.NewExchangeService(accountRepo, cfg.Security.EncryptionKeyBytes())
	tradingService := service.NewTradingService(tradeRepo, walletRepo, portfolioRepo, table)
	tradingService.SetOrderMirror(exchangeService)
	futuresService := service.NewFuturesService(futuresRepo, walletRepo, table)
	alertService := service.NewAlertService(alertRepo, table)

	deps := &api.Dependencies{
		TradingService:  tradingService,
		FuturesService:  futuresService,
		ExchangeService: exchangeService,
		AlertService:    alertService,
		Hub:             hub,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Движок останавливается до источника тиков, чтобы не читать
	// из закрытого канала
	stopEngine()
	relay.Stop()
	close(pollDone)
	close(streamDone)
	hub.Stop()
	exchange.CloseGlobalClient()

	log.Println("Server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
