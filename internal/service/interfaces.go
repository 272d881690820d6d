package service

import (
	"context"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/repository"
)

// TradeRepositoryInterface определяет интерфейс репозитория ордеров
type TradeRepositoryInterface interface {
	Create(ctx context.Context, trade *models.Trade) error
	GetByID(ctx context.Context, id int) (*models.Trade, error)
	GetByUser(ctx context.Context, userID int) ([]models.Trade, error)
	MarkCompleted(ctx context.Context, id int, execPrice float64, stopTriggered bool) error
	MarkCancelled(ctx context.Context, id, userID int) error
}

// WalletRepositoryInterface определяет интерфейс репозитория кошельков
type WalletRepositoryInterface interface {
	Get(ctx context.Context, userID int, currency string) (*models.Wallet, error)
	GetByUser(ctx context.Context, userID int) ([]models.Wallet, error)
	Debit(ctx context.Context, userID int, currency string, amount float64) error
	Credit(ctx context.Context, userID int, currency string, amount float64) error
}

// PortfolioRepositoryInterface определяет интерфейс репозитория спотовых позиций
type PortfolioRepositoryInterface interface {
	Get(ctx context.Context, userID int, symbol string) (*models.PortfolioPosition, error)
	GetByUser(ctx context.Context, userID int) ([]models.PortfolioPosition, error)
	Save(ctx context.Context, pos *models.PortfolioPosition) error
}

// FuturesRepositoryInterface определяет интерфейс репозитория фьючерсных позиций
type FuturesRepositoryInterface interface {
	Create(ctx context.Context, pos *models.FuturesPosition) error
	GetByID(ctx context.Context, id int) (*models.FuturesPosition, error)
	GetOpenByUser(ctx context.Context, userID int) ([]models.FuturesPosition, error)
	Update(ctx context.Context, pos *models.FuturesPosition) error
}

// AlertRepositoryInterface определяет интерфейс репозитория ценовых алертов
type AlertRepositoryInterface interface {
	Create(ctx context.Context, alert *models.PriceAlert) error
	GetByUser(ctx context.Context, userID int) ([]models.PriceAlert, error)
	Delete(ctx context.Context, id, userID int) error
}

// AccountRepositoryInterface определяет интерфейс репозитория биржевых аккаунтов
type AccountRepositoryInterface interface {
	Get(ctx context.Context, userID int, exchange string) (*models.ExchangeAccount, error)
	GetByUser(ctx context.Context, userID int) ([]models.ExchangeAccount, error)
	Upsert(ctx context.Context, acc *models.ExchangeAccount) error
	SetLastError(ctx context.Context, userID int, exchange, lastError string) error
	Delete(ctx context.Context, userID int, exchange string) error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ WalletRepositoryInterface = (*repository.WalletRepository)(nil)
var _ PortfolioRepositoryInterface = (*repository.PortfolioRepository)(nil)
var _ FuturesRepositoryInterface = (*repository.FuturesRepository)(nil)
var _ AlertRepositoryInterface = (*repository.AlertRepository)(nil)
var _ AccountRepositoryInterface = (*repository.AccountRepository)(nil)

// PriceSource отдаёт текущие рыночные данные по символу.
// Реализуется marketdata.TickerTable.
type PriceSource interface {
	Get(symbol string) (models.Ticker, bool)
	Price(symbol string) float64
	List() []models.Ticker
}

// OrderMirror зеркалирует исполненный симулируемый ордер на живые биржевые
// аккаунты пользователя. Реализуется ExchangeService.
type OrderMirror interface {
	MirrorOrder(ctx context.Context, userID int, req MirrorOrderRequest)
}

// TradingServiceInterface определяет интерфейс торгового сервиса для API handlers
type TradingServiceInterface interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Trade, error)
	CancelOrder(ctx context.Context, userID, id int) error
	GetOrder(ctx context.Context, userID, id int) (*models.Trade, error)
	ListOrders(ctx context.Context, userID int) ([]models.Trade, error)
	ListTickers() []models.Ticker
	GetTicker(symbol string) (models.Ticker, error)
	GetPortfolio(ctx context.Context, userID int) ([]PositionView, error)
	GetWallets(ctx context.Context, userID int) ([]models.Wallet, error)
}

// FuturesServiceInterface определяет интерфейс фьючерсного сервиса для API handlers
type FuturesServiceInterface interface {
	OpenPosition(ctx context.Context, req OpenPositionRequest) (*models.FuturesPosition, error)
	ClosePosition(ctx context.Context, userID, id int, quantity float64) (*models.FuturesPosition, error)
	TransferMargin(ctx context.Context, userID, id int, amount float64) (*models.FuturesPosition, error)
	ListPositions(ctx context.Context, userID int) ([]FuturesPositionView, error)
}

// ExchangeServiceInterface определяет интерфейс сервиса биржевых аккаунтов для API handlers
type ExchangeServiceInterface interface {
	ConnectExchange(ctx context.Context, userID int, name, apiKey, apiSecret, passphrase string, mirroring bool) (*models.ExchangeAccount, error)
	DisconnectExchange(ctx context.Context, userID int, name string) error
	SetMirroring(ctx context.Context, userID int, name string, enabled bool) error
	ListAccounts(ctx context.Context, userID int) ([]models.ExchangeAccount, error)
	GetBalances(ctx context.Context, userID int, name string) ([]exchange.Balance, error)
}

// AlertServiceInterface определяет интерфейс сервиса ценовых алертов для API handlers
type AlertServiceInterface interface {
	CreateAlert(ctx context.Context, userID int, symbol string, targetPrice float64, direction string) (*models.PriceAlert, error)
	ListAlerts(ctx context.Context, userID int) ([]models.PriceAlert, error)
	DeleteAlert(ctx context.Context, userID, id int) error
}

// Проверяем, что сервисы реализуют интерфейсы
var _ TradingServiceInterface = (*TradingService)(nil)
var _ FuturesServiceInterface = (*FuturesService)(nil)
var _ ExchangeServiceInterface = (*ExchangeService)(nil)
var _ AlertServiceInterface = (*AlertService)(nil)
