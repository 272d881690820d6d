package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/repository"
	"cryptosim/internal/sim"
)

// Ошибки торгового сервиса
var (
	ErrUnknownSymbol       = errors.New("no market data for symbol")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order is not cancellable")
)

// PlaceOrderRequest описывает запрос на размещение симулируемого ордера.
// Для market buy вместо Quantity может быть указан QuoteAmount - сумма
// в котируемой валюте; при наличии обоих приоритет у QuoteAmount.
type PlaceOrderRequest struct {
	UserID      int     `json:"-"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	Quantity    float64 `json:"quantity,omitempty"`
	QuoteAmount float64 `json:"quote_amount,omitempty"`
	LimitPrice  float64 `json:"limit_price,omitempty"`
	StopPrice   float64 `json:"stop_price,omitempty"`
}

// PositionView - спотовая позиция с расчётными полями по текущей цене
type PositionView struct {
	models.PortfolioPosition
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// TradingService - бизнес-логика симулируемой спотовой торговли.
//
// Market ордера исполняются немедленно по текущей цене из таблицы тикеров.
// Limit и stop ордера сохраняются как pending: их исполняет движок симуляции
// на живых тиках. Средства двигаются только в момент исполнения.
type TradingService struct {
	trades    TradeRepositoryInterface
	wallets   WalletRepositoryInterface
	portfolio PortfolioRepositoryInterface
	prices    PriceSource
	mirror    OrderMirror // nil если зеркалирование не сконфигурировано
}

// NewTradingService создает новый экземпляр сервиса
func NewTradingService(trades TradeRepositoryInterface, wallets WalletRepositoryInterface, portfolio PortfolioRepositoryInterface, prices PriceSource) *TradingService {
	return &TradingService{
		trades:    trades,
		wallets:   wallets,
		portfolio: portfolio,
		prices:    prices,
	}
}

// SetOrderMirror подключает зеркалирование ордеров на живые аккаунты.
// Вызывается из main.go после инициализации ExchangeService.
func (s *TradingService) SetOrderMirror(mirror OrderMirror) {
	s.mirror = mirror
}

// PlaceOrder размещает симулируемый ордер.
//
// Market исполняется сразу и возвращается со статусом completed.
// Limit/stop создаются в статусе pending.
func (s *TradingService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Trade, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	if err := s.validateOrder(req); err != nil {
		return nil, err
	}

	price := s.prices.Price(req.Symbol)
	if price <= 0 {
		return nil, ErrUnknownSymbol
	}

	trade := &models.Trade{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	}

	if req.Type == models.TradeTypeMarket {
		// QuoteAmount пересчитывается в количество по текущей цене
		if req.Side == models.TradeSideBuy && req.QuoteAmount > 0 {
			trade.Quantity = req.QuoteAmount / price
		}
		if err := s.executeMarket(ctx, trade, price); err != nil {
			return nil, err
		}
	} else {
		if err := s.trades.Create(ctx, trade); err != nil {
			return nil, err
		}
		log.Printf("[trading] order %d created: %s %s %s qty=%v", trade.ID, trade.Side, trade.Type, trade.Symbol, trade.Quantity)
	}

	s.mirrorOrder(ctx, req)
	return trade, nil
}

// validateOrder проверяет параметры запроса
func (s *TradingService) validateOrder(req PlaceOrderRequest) error {
	if req.Side != models.TradeSideBuy && req.Side != models.TradeSideSell {
		return ErrInvalidOrder
	}

	switch req.Type {
	case models.TradeTypeMarket:
		if req.Side == models.TradeSideBuy {
			if req.Quantity <= 0 && req.QuoteAmount <= 0 {
				return ErrInvalidOrder
			}
		} else if req.Quantity <= 0 {
			return ErrInvalidOrder
		}
	case models.TradeTypeLimit:
		if req.Quantity <= 0 || req.LimitPrice <= 0 {
			return ErrInvalidOrder
		}
	case models.TradeTypeStop:
		if req.Quantity <= 0 || req.StopPrice <= 0 {
			return ErrInvalidOrder
		}
	default:
		return ErrInvalidOrder
	}
	return nil
}

// executeMarket исполняет market ордер немедленно по текущей цене
func (s *TradingService) executeMarket(ctx context.Context, trade *models.Trade, price float64) error {
	base, quote := exchange.SplitCanonical(trade.Symbol)
	if quote == "" {
		return ErrUnknownSymbol
	}
	total := price * trade.Quantity

	var err error
	if trade.Side == models.TradeSideBuy {
		err = s.wallets.Debit(ctx, trade.UserID, quote, total)
	} else {
		err = s.wallets.Debit(ctx, trade.UserID, base, trade.Quantity)
	}
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}

	if trade.Side == models.TradeSideBuy {
		err = s.wallets.Credit(ctx, trade.UserID, base, trade.Quantity)
	} else {
		err = s.wallets.Credit(ctx, trade.UserID, quote, total)
	}
	if err != nil {
		return err
	}

	if err := s.trades.Create(ctx, trade); err != nil {
		return err
	}
	if err := s.trades.MarkCompleted(ctx, trade.ID, price, false); err != nil {
		return err
	}
	trade.Status = models.TradeStatusCompleted
	trade.ExecPrice = price

	s.applyToPortfolio(ctx, trade, price)
	sim.OrdersFilled.WithLabelValues(trade.Type, trade.Side).Inc()

	log.Printf("[trading] order %d executed: %s market %s qty=%v price=%v", trade.ID, trade.Side, trade.Symbol, trade.Quantity, price)
	return nil
}

// applyToPortfolio обновляет спотовую позицию после market исполнения
func (s *TradingService) applyToPortfolio(ctx context.Context, trade *models.Trade, price float64) {
	pos, err := s.portfolio.Get(ctx, trade.UserID, trade.Symbol)
	if errors.Is(err, repository.ErrPositionNotFound) {
		pos = &models.PortfolioPosition{UserID: trade.UserID, Symbol: trade.Symbol}
	} else if err != nil {
		log.Printf("[trading] failed to load position for order %d: %v", trade.ID, err)
		return
	}

	if trade.Side == models.TradeSideBuy {
		sim.ApplyBuy(pos, trade.Quantity, price)
	} else {
		sellQty := trade.Quantity
		if sellQty > pos.Quantity {
			sellQty = pos.Quantity
		}
		_, _ = sim.ApplySell(pos, sellQty, price)
	}

	if err := s.portfolio.Save(ctx, pos); err != nil {
		log.Printf("[trading] failed to save position for order %d: %v", trade.ID, err)
	}
}

// mirrorOrder передаёт ордер на зеркалирование. Stop ордера не зеркалируются:
// унифицированный биржевой интерфейс поддерживает только market и limit.
func (s *TradingService) mirrorOrder(ctx context.Context, req PlaceOrderRequest) {
	if s.mirror == nil || req.Type == models.TradeTypeStop {
		return
	}
	s.mirror.MirrorOrder(ctx, req.UserID, MirrorOrderRequest{
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		QuoteAmount: req.QuoteAmount,
		Price:       req.LimitPrice,
	})
}

// CancelOrder отменяет pending ордер пользователя.
// Гонка с исполнением решается compare-and-set в хранилище: если движок
// успел исполнить ордер, отмена возвращает ErrOrderNotCancellable.
func (s *TradingService) CancelOrder(ctx context.Context, userID, id int) error {
	err := s.trades.MarkCancelled(ctx, id, userID)
	if errors.Is(err, repository.ErrAlreadyTerminal) {
		return ErrOrderNotCancellable
	}
	if err != nil {
		return err
	}
	sim.OrdersCancelled.WithLabelValues("user").Inc()
	log.Printf("[trading] order %d cancelled by user %d", id, userID)
	return nil
}

// GetOrder возвращает ордер пользователя по ID
func (s *TradingService) GetOrder(ctx context.Context, userID, id int) (*models.Trade, error) {
	trade, err := s.trades.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTradeNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	// Чужие ордера не раскрываются
	if trade.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return trade, nil
}

// ListOrders возвращает все ордера пользователя
func (s *TradingService) ListOrders(ctx context.Context, userID int) ([]models.Trade, error) {
	return s.trades.GetByUser(ctx, userID)
}

// ListTickers возвращает текущее состояние рынка по всем символам
func (s *TradingService) ListTickers() []models.Ticker {
	return s.prices.List()
}

// GetTicker возвращает тикер символа
func (s *TradingService) GetTicker(symbol string) (models.Ticker, error) {
	ticker, ok := s.prices.Get(strings.ToUpper(symbol))
	if !ok {
		return models.Ticker{}, ErrUnknownSymbol
	}
	return ticker, nil
}

// GetPortfolio возвращает спотовые позиции пользователя с нереализованным PnL
// по текущим ценам
func (s *TradingService) GetPortfolio(ctx context.Context, userID int) ([]PositionView, error) {
	positions, err := s.portfolio.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		mark := s.prices.Price(pos.Symbol)
		view := PositionView{PortfolioPosition: pos, MarkPrice: mark}
		if mark > 0 {
			view.UnrealizedPnL = pos.UnrealizedPnL(mark)
		}
		views = append(views, view)
	}
	return views, nil
}

// GetWallets возвращает балансы пользователя
func (s *TradingService) GetWallets(ctx context.Context, userID int) ([]models.Wallet, error) {
	return s.wallets.GetByUser(ctx, userID)
}
