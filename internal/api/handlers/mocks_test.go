package handlers

import (
	"context"
	"strings"
	"sync"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/service"
)

// MockTradingService - мок торгового сервиса для тестов handlers
type MockTradingService struct {
	mu sync.Mutex

	placeErr  error
	cancelErr error

	orders    map[int]*models.Trade
	tickers   []models.Ticker
	portfolio []service.PositionView
	wallets   []models.Wallet

	placed []service.PlaceOrderRequest
	nextID int
}

var _ service.TradingServiceInterface = (*MockTradingService)(nil)

func NewMockTradingService() *MockTradingService {
	return &MockTradingService{
		orders: make(map[int]*models.Trade),
		nextID: 1,
	}
}

func (m *MockTradingService) SetPlaceError(err error)  { m.mu.Lock(); m.placeErr = err; m.mu.Unlock() }
func (m *MockTradingService) SetCancelError(err error) { m.mu.Lock(); m.cancelErr = err; m.mu.Unlock() }

func (m *MockTradingService) Placed() []service.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.PlaceOrderRequest(nil), m.placed...)
}

func (m *MockTradingService) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.placed = append(m.placed, req)

	trade := &models.Trade{
		ID:       m.nextID,
		UserID:   req.UserID,
		Symbol:   strings.ToUpper(req.Symbol),
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
		Status:   models.TradeStatusPending,
	}
	if req.Type == models.TradeTypeMarket {
		trade.Status = models.TradeStatusCompleted
	}
	m.nextID++
	m.orders[trade.ID] = trade
	return trade, nil
}

func (m *MockTradingService) CancelOrder(ctx context.Context, userID, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	order, ok := m.orders[id]
	if !ok || order.UserID != userID {
		return service.ErrOrderNotFound
	}
	if order.Status != models.TradeStatusPending {
		return service.ErrOrderNotCancellable
	}
	order.Status = models.TradeStatusCancelled
	return nil
}

func (m *MockTradingService) GetOrder(ctx context.Context, userID, id int) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.UserID != userID {
		return nil, service.ErrOrderNotFound
	}
	return order, nil
}

func (m *MockTradingService) ListOrders(ctx context.Context, userID int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trade
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *MockTradingService) ListTickers() []models.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Ticker(nil), m.tickers...)
}

func (m *MockTradingService) GetTicker(symbol string) (models.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickers {
		if t.Symbol == symbol {
			return t, nil
		}
	}
	return models.Ticker{}, service.ErrUnknownSymbol
}

func (m *MockTradingService) GetPortfolio(ctx context.Context, userID int) ([]service.PositionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolio, nil
}

func (m *MockTradingService) GetWallets(ctx context.Context, userID int) ([]models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets, nil
}

// MockFuturesService - мок фьючерсного сервиса для тестов handlers
type MockFuturesService struct {
	mu sync.Mutex

	openErr     error
	closeErr    error
	transferErr error

	positions map[int]*models.FuturesPosition
	nextID    int
}

var _ service.FuturesServiceInterface = (*MockFuturesService)(nil)

func NewMockFuturesService() *MockFuturesService {
	return &MockFuturesService{
		positions: make(map[int]*models.FuturesPosition),
		nextID:    1,
	}
}

func (m *MockFuturesService) SetOpenError(err error)  { m.mu.Lock(); m.openErr = err; m.mu.Unlock() }
func (m *MockFuturesService) SetCloseError(err error) { m.mu.Lock(); m.closeErr = err; m.mu.Unlock() }
func (m *MockFuturesService) SetTransferError(err error) {
	m.mu.Lock()
	m.transferErr = err
	m.mu.Unlock()
}

func (m *MockFuturesService) OpenPosition(ctx context.Context, req service.OpenPositionRequest) (*models.FuturesPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	pos := &models.FuturesPosition{
		ID:         m.nextID,
		UserID:     req.UserID,
		Symbol:     strings.ToUpper(req.Symbol),
		Side:       req.Side,
		Quantity:   req.Quantity,
		Leverage:   req.Leverage,
		MarginMode: req.MarginMode,
		Status:     models.PositionStatusOpen,
	}
	m.nextID++
	m.positions[pos.ID] = pos
	return pos, nil
}

func (m *MockFuturesService) ClosePosition(ctx context.Context, userID, id int, quantity float64) (*models.FuturesPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	pos, ok := m.positions[id]
	if !ok || pos.UserID != userID {
		return nil, service.ErrPositionNotFound
	}
	pos.Status = models.PositionStatusClosed
	return pos, nil
}

func (m *MockFuturesService) TransferMargin(ctx context.Context, userID, id int, amount float64) (*models.FuturesPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transferErr != nil {
		return nil, m.transferErr
	}
	pos, ok := m.positions[id]
	if !ok || pos.UserID != userID {
		return nil, service.ErrPositionNotFound
	}
	pos.IsolatedMargin += amount
	return pos, nil
}

func (m *MockFuturesService) ListPositions(ctx context.Context, userID int) ([]service.FuturesPositionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []service.FuturesPositionView
	for _, pos := range m.positions {
		if pos.UserID == userID && pos.Status == models.PositionStatusOpen {
			out = append(out, service.FuturesPositionView{FuturesPosition: *pos})
		}
	}
	return out, nil
}

// MockExchangeService - мок сервиса биржевых аккаунтов для тестов handlers
type MockExchangeService struct {
	mu sync.Mutex

	connectErr    error
	disconnectErr error
	mirroringErr  error
	balancesErr   error

	accounts []models.ExchangeAccount
	balances []exchange.Balance
}

var _ service.ExchangeServiceInterface = (*MockExchangeService)(nil)

func NewMockExchangeService() *MockExchangeService {
	return &MockExchangeService{}
}

func (m *MockExchangeService) SetConnectError(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

func (m *MockExchangeService) SetDisconnectError(err error) {
	m.mu.Lock()
	m.disconnectErr = err
	m.mu.Unlock()
}

func (m *MockExchangeService) SetMirroringError(err error) {
	m.mu.Lock()
	m.mirroringErr = err
	m.mu.Unlock()
}

func (m *MockExchangeService) SetBalancesError(err error) {
	m.mu.Lock()
	m.balancesErr = err
	m.mu.Unlock()
}

func (m *MockExchangeService) ConnectExchange(ctx context.Context, userID int, name, apiKey, apiSecret, passphrase string, mirroring bool) (*models.ExchangeAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	account := models.ExchangeAccount{
		ID:        len(m.accounts) + 1,
		UserID:    userID,
		Exchange:  name,
		Mirroring: mirroring,
	}
	m.accounts = append(m.accounts, account)
	return &account, nil
}

func (m *MockExchangeService) DisconnectExchange(ctx context.Context, userID int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectErr
}

func (m *MockExchangeService) SetMirroring(ctx context.Context, userID int, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mirroringErr
}

func (m *MockExchangeService) ListAccounts(ctx context.Context, userID int) ([]models.ExchangeAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ExchangeAccount(nil), m.accounts...), nil
}

func (m *MockExchangeService) GetBalances(ctx context.Context, userID int, name string) ([]exchange.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balancesErr != nil {
		return nil, m.balancesErr
	}
	return append([]exchange.Balance(nil), m.balances...), nil
}

// MockAlertService - мок сервиса алертов для тестов handlers
type MockAlertService struct {
	mu sync.Mutex

	createErr error
	deleteErr error

	alerts map[int]*models.PriceAlert
	nextID int
}

var _ service.AlertServiceInterface = (*MockAlertService)(nil)

func NewMockAlertService() *MockAlertService {
	return &MockAlertService{
		alerts: make(map[int]*models.PriceAlert),
		nextID: 1,
	}
}

func (m *MockAlertService) SetCreateError(err error) { m.mu.Lock(); m.createErr = err; m.mu.Unlock() }
func (m *MockAlertService) SetDeleteError(err error) { m.mu.Lock(); m.deleteErr = err; m.mu.Unlock() }

func (m *MockAlertService) CreateAlert(ctx context.Context, userID int, symbol string, targetPrice float64, direction string) (*models.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	alert := &models.PriceAlert{
		ID:          m.nextID,
		UserID:      userID,
		Symbol:      strings.ToUpper(symbol),
		TargetPrice: targetPrice,
		Direction:   direction,
		IsActive:    true,
	}
	m.nextID++
	m.alerts[alert.ID] = alert
	return alert, nil
}

func (m *MockAlertService) ListAlerts(ctx context.Context, userID int) ([]models.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceAlert
	for _, alert := range m.alerts {
		if alert.UserID == userID {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (m *MockAlertService) DeleteAlert(ctx context.Context, userID, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	alert, ok := m.alerts[id]
	if !ok || alert.UserID != userID {
		return service.ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}
