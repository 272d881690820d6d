package service

import (
	"context"
	"fmt"
	"time"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/repository"
)

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades    map[int]*models.Trade
	nextID    int
	createErr error
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{trades: make(map[int]*models.Trade), nextID: 1}
}

func (m *MockTradeRepository) Create(_ context.Context, trade *models.Trade) error {
	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = m.nextID
	m.nextID++
	trade.Status = models.TradeStatusPending
	trade.CreatedAt = time.Now()
	cp := *trade
	m.trades[trade.ID] = &cp
	return nil
}

func (m *MockTradeRepository) GetByID(_ context.Context, id int) (*models.Trade, error) {
	trade, ok := m.trades[id]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	cp := *trade
	return &cp, nil
}

func (m *MockTradeRepository) GetByUser(_ context.Context, userID int) ([]models.Trade, error) {
	var result []models.Trade
	for _, t := range m.trades {
		if t.UserID == userID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) MarkCompleted(_ context.Context, id int, execPrice float64, stopTriggered bool) error {
	trade, ok := m.trades[id]
	if !ok || trade.Status != models.TradeStatusPending {
		return repository.ErrAlreadyTerminal
	}
	now := time.Now()
	trade.Status = models.TradeStatusCompleted
	trade.ExecPrice = execPrice
	trade.StopTriggered = trade.StopTriggered || stopTriggered
	trade.FilledAt = &now
	return nil
}

func (m *MockTradeRepository) MarkCancelled(_ context.Context, id, userID int) error {
	trade, ok := m.trades[id]
	if !ok || trade.UserID != userID || trade.Status != models.TradeStatusPending {
		return repository.ErrAlreadyTerminal
	}
	trade.Status = models.TradeStatusCancelled
	return nil
}

// ============ Mock WalletRepository ============

type MockWalletRepository struct {
	balances map[string]float64 // "userID/currency" -> balance
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{balances: make(map[string]float64)}
}

func walletKey(userID int, currency string) string {
	return fmt.Sprintf("%d/%s", userID, currency)
}

func (m *MockWalletRepository) Get(_ context.Context, userID int, currency string) (*models.Wallet, error) {
	balance, ok := m.balances[walletKey(userID, currency)]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	return &models.Wallet{UserID: userID, Currency: currency, Balance: balance}, nil
}

func (m *MockWalletRepository) GetByUser(_ context.Context, userID int) ([]models.Wallet, error) {
	var result []models.Wallet
	for key, balance := range m.balances {
		var id int
		var currency string
		fmt.Sscanf(key, "%d/%s", &id, &currency)
		if id == userID {
			result = append(result, models.Wallet{UserID: userID, Currency: currency, Balance: balance})
		}
	}
	return result, nil
}

func (m *MockWalletRepository) Debit(_ context.Context, userID int, currency string, amount float64) error {
	key := walletKey(userID, currency)
	if m.balances[key] < amount {
		return repository.ErrInsufficientBalance
	}
	m.balances[key] -= amount
	return nil
}

func (m *MockWalletRepository) Credit(_ context.Context, userID int, currency string, amount float64) error {
	m.balances[walletKey(userID, currency)] += amount
	return nil
}

// ============ Mock PortfolioRepository ============

type MockPortfolioRepository struct {
	positions map[string]*models.PortfolioPosition
}

func NewMockPortfolioRepository() *MockPortfolioRepository {
	return &MockPortfolioRepository{positions: make(map[string]*models.PortfolioPosition)}
}

func (m *MockPortfolioRepository) Get(_ context.Context, userID int, symbol string) (*models.PortfolioPosition, error) {
	pos, ok := m.positions[fmt.Sprintf("%d/%s", userID, symbol)]
	if !ok {
		return nil, repository.ErrPositionNotFound
	}
	cp := *pos
	return &cp, nil
}

func (m *MockPortfolioRepository) GetByUser(_ context.Context, userID int) ([]models.PortfolioPosition, error) {
	var result []models.PortfolioPosition
	for _, pos := range m.positions {
		if pos.UserID == userID && pos.Quantity > 0 {
			result = append(result, *pos)
		}
	}
	return result, nil
}

func (m *MockPortfolioRepository) Save(_ context.Context, pos *models.PortfolioPosition) error {
	cp := *pos
	m.positions[fmt.Sprintf("%d/%s", pos.UserID, pos.Symbol)] = &cp
	return nil
}

// ============ Mock FuturesRepository ============

type MockFuturesRepository struct {
	positions map[int]*models.FuturesPosition
	nextID    int
	createErr error
}

func NewMockFuturesRepository() *MockFuturesRepository {
	return &MockFuturesRepository{positions: make(map[int]*models.FuturesPosition), nextID: 1}
}

func (m *MockFuturesRepository) Create(_ context.Context, pos *models.FuturesPosition) error {
	if m.createErr != nil {
		return m.createErr
	}
	pos.ID = m.nextID
	m.nextID++
	pos.CreatedAt = time.Now()
	cp := *pos
	m.positions[pos.ID] = &cp
	return nil
}

func (m *MockFuturesRepository) GetByID(_ context.Context, id int) (*models.FuturesPosition, error) {
	pos, ok := m.positions[id]
	if !ok {
		return nil, repository.ErrFuturesPositionNotFound
	}
	cp := *pos
	return &cp, nil
}

func (m *MockFuturesRepository) GetOpenByUser(_ context.Context, userID int) ([]models.FuturesPosition, error) {
	var result []models.FuturesPosition
	for _, pos := range m.positions {
		if pos.UserID == userID && pos.Status == models.PositionStatusOpen {
			result = append(result, *pos)
		}
	}
	return result, nil
}

func (m *MockFuturesRepository) Update(_ context.Context, pos *models.FuturesPosition) error {
	if _, ok := m.positions[pos.ID]; !ok {
		return repository.ErrFuturesPositionNotFound
	}
	cp := *pos
	m.positions[pos.ID] = &cp
	return nil
}

// ============ Mock AlertRepository ============

type MockAlertRepository struct {
	alerts map[int]*models.PriceAlert
	nextID int
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{alerts: make(map[int]*models.PriceAlert), nextID: 1}
}

func (m *MockAlertRepository) Create(_ context.Context, alert *models.PriceAlert) error {
	alert.ID = m.nextID
	m.nextID++
	alert.IsActive = true
	alert.CreatedAt = time.Now()
	cp := *alert
	m.alerts[alert.ID] = &cp
	return nil
}

func (m *MockAlertRepository) GetByUser(_ context.Context, userID int) ([]models.PriceAlert, error) {
	var result []models.PriceAlert
	for _, a := range m.alerts {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *MockAlertRepository) Delete(_ context.Context, id, userID int) error {
	alert, ok := m.alerts[id]
	if !ok || alert.UserID != userID {
		return repository.ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}

// ============ Mock AccountRepository ============

type MockAccountRepository struct {
	accounts map[string]*models.ExchangeAccount
	nextID   int
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*models.ExchangeAccount), nextID: 1}
}

func accountKey(userID int, exchangeName string) string {
	return fmt.Sprintf("%d/%s", userID, exchangeName)
}

func (m *MockAccountRepository) Get(_ context.Context, userID int, exchangeName string) (*models.ExchangeAccount, error) {
	acc, ok := m.accounts[accountKey(userID, exchangeName)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *MockAccountRepository) GetByUser(_ context.Context, userID int) ([]models.ExchangeAccount, error) {
	var result []models.ExchangeAccount
	for _, acc := range m.accounts {
		if acc.UserID == userID {
			result = append(result, *acc)
		}
	}
	return result, nil
}

func (m *MockAccountRepository) Upsert(_ context.Context, acc *models.ExchangeAccount) error {
	key := accountKey(acc.UserID, acc.Exchange)
	if existing, ok := m.accounts[key]; ok {
		acc.ID = existing.ID
	} else {
		acc.ID = m.nextID
		m.nextID++
	}
	acc.LastError = ""
	cp := *acc
	m.accounts[key] = &cp
	return nil
}

func (m *MockAccountRepository) SetLastError(_ context.Context, userID int, exchangeName, lastError string) error {
	acc, ok := m.accounts[accountKey(userID, exchangeName)]
	if !ok {
		return repository.ErrAccountNotFound
	}
	acc.LastError = lastError
	return nil
}

func (m *MockAccountRepository) Delete(_ context.Context, userID int, exchangeName string) error {
	key := accountKey(userID, exchangeName)
	if _, ok := m.accounts[key]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(m.accounts, key)
	return nil
}

// ============ Mock PriceSource ============

type MockPriceSource struct {
	tickers map[string]models.Ticker
}

func NewMockPriceSource(prices map[string]float64) *MockPriceSource {
	tickers := make(map[string]models.Ticker, len(prices))
	for symbol, price := range prices {
		tickers[symbol] = models.Ticker{Symbol: symbol, LastPrice: price, UpdatedAt: time.Now()}
	}
	return &MockPriceSource{tickers: tickers}
}

func (m *MockPriceSource) Get(symbol string) (models.Ticker, bool) {
	ticker, ok := m.tickers[symbol]
	return ticker, ok
}

func (m *MockPriceSource) Price(symbol string) float64 {
	return m.tickers[symbol].LastPrice
}

func (m *MockPriceSource) List() []models.Ticker {
	result := make([]models.Ticker, 0, len(m.tickers))
	for _, t := range m.tickers {
		result = append(result, t)
	}
	return result
}

// ============ Mock OrderMirror ============

type MockOrderMirror struct {
	calls []MirrorOrderRequest
}

func (m *MockOrderMirror) MirrorOrder(_ context.Context, _ int, req MirrorOrderRequest) {
	m.calls = append(m.calls, req)
}

// ============ Mock Exchange adapter ============

type MockExchange struct {
	name        string
	validateErr error
	placeErr    error
	placed      []exchange.OrderRequest
	balances    []exchange.Balance
}

func (m *MockExchange) GetName() string {
	return m.name
}

func (m *MockExchange) GetBalances(_ context.Context, _ exchange.Credentials) ([]exchange.Balance, error) {
	return m.balances, nil
}

func (m *MockExchange) PlaceOrder(_ context.Context, _ exchange.Credentials, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.placed = append(m.placed, req)
	return &exchange.OrderResult{ExchangeOrderID: "mock-1", Status: exchange.OrderStatusFilled}, nil
}

func (m *MockExchange) GetOrder(_ context.Context, _ exchange.Credentials, _, orderID string) (*exchange.OrderResult, error) {
	return &exchange.OrderResult{ExchangeOrderID: orderID, Status: exchange.OrderStatusFilled}, nil
}

func (m *MockExchange) ValidateCredentials(_ context.Context, _ exchange.Credentials) error {
	return m.validateErr
}
