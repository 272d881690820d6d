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

// Ошибки фьючерсного сервиса
var (
	ErrPositionNotFound = errors.New("futures position not found")
)

// OpenPositionRequest описывает запрос на открытие фьючерсной позиции.
// Позиция открывается по текущей рыночной цене символа.
type OpenPositionRequest struct {
	UserID     int     `json:"-"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`        // long, short
	Quantity   float64 `json:"quantity"`
	Leverage   int     `json:"leverage"`
	MarginMode string  `json:"margin_mode"` // cross, isolated
}

// FuturesPositionView - позиция с расчётными полями по текущей цене
type FuturesPositionView struct {
	models.FuturesPosition
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	ROE           float64 `json:"roe"`
}

// FuturesService - бизнес-логика симулируемой фьючерсной торговли.
//
// Isolated маржа резервируется из кошелька при открытии и возвращается
// при закрытии вместе с реализованным PnL. Расчёты (цена ликвидации,
// PnL, ROE) выполняет пакет sim, сервис отвечает за движение средств
// и персистентность.
type FuturesService struct {
	futures FuturesRepositoryInterface
	wallets WalletRepositoryInterface
	prices  PriceSource
}

// NewFuturesService создает новый экземпляр сервиса
func NewFuturesService(futures FuturesRepositoryInterface, wallets WalletRepositoryInterface, prices PriceSource) *FuturesService {
	return &FuturesService{
		futures: futures,
		wallets: wallets,
		prices:  prices,
	}
}

// OpenPosition открывает позицию по текущей рыночной цене.
// Для isolated позиций начальная маржа списывается с кошелька.
func (s *FuturesService) OpenPosition(ctx context.Context, req OpenPositionRequest) (*models.FuturesPosition, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	price := s.prices.Price(req.Symbol)
	if price <= 0 {
		return nil, ErrUnknownSymbol
	}
	_, quote := exchange.SplitCanonical(req.Symbol)
	if quote == "" {
		return nil, ErrUnknownSymbol
	}

	if req.MarginMode == "" {
		req.MarginMode = models.MarginModeIsolated
	}

	pos := &models.FuturesPosition{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: price,
		Leverage:   req.Leverage,
		MarginMode: req.MarginMode,
	}
	if err := sim.OpenFuturesPosition(pos); err != nil {
		return nil, err
	}

	if pos.MarginMode == models.MarginModeIsolated {
		err := s.wallets.Debit(ctx, req.UserID, quote, pos.IsolatedMargin)
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientFunds
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.futures.Create(ctx, pos); err != nil {
		// Маржа возвращается, если позиция не сохранилась
		if pos.MarginMode == models.MarginModeIsolated {
			_ = s.wallets.Credit(ctx, req.UserID, quote, pos.IsolatedMargin)
		}
		return nil, err
	}

	log.Printf("[futures] position %d opened: %s %s qty=%v entry=%v leverage=%dx liq=%v",
		pos.ID, pos.Side, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.Leverage, pos.LiquidationPrice)
	return pos, nil
}

// ClosePosition закрывает позицию полностью или частично по текущей цене.
// quantity <= 0 означает полное закрытие. Высвобожденная маржа и
// реализованный PnL зачисляются в кошелёк (не ниже нуля: убыток
// поглощается маржой).
func (s *FuturesService) ClosePosition(ctx context.Context, userID, id int, quantity float64) (*models.FuturesPosition, error) {
	pos, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	price := s.prices.Price(pos.Symbol)
	if price <= 0 {
		return nil, ErrUnknownSymbol
	}
	_, quote := exchange.SplitCanonical(pos.Symbol)

	if quantity <= 0 {
		quantity = pos.Quantity
	}

	marginBefore := pos.IsolatedMargin
	realized, err := sim.CloseFuturesPosition(pos, quantity, price)
	if err != nil {
		return nil, err
	}

	if err := s.futures.Update(ctx, pos); err != nil {
		return nil, err
	}

	if pos.MarginMode == models.MarginModeIsolated {
		released := marginBefore
		if pos.Status == models.PositionStatusOpen {
			released = marginBefore - pos.IsolatedMargin
		}
		payout := released + realized
		if payout > 0 {
			if err := s.wallets.Credit(ctx, userID, quote, payout); err != nil {
				log.Printf("[futures] failed to credit payout for position %d: %v", pos.ID, err)
			}
		}
	}

	log.Printf("[futures] position %d closed qty=%v price=%v realized=%v status=%s",
		pos.ID, quantity, price, realized, pos.Status)
	return pos, nil
}

// TransferMargin добавляет (amount > 0) или снимает (amount < 0) isolated
// маржу позиции, двигая средства через кошелёк
func (s *FuturesService) TransferMargin(ctx context.Context, userID, id int, amount float64) (*models.FuturesPosition, error) {
	pos, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	_, quote := exchange.SplitCanonical(pos.Symbol)

	if amount > 0 {
		err := s.wallets.Debit(ctx, userID, quote, amount)
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientFunds
		}
		if err != nil {
			return nil, err
		}
	}

	if err := sim.TransferFuturesMargin(pos, amount); err != nil {
		if amount > 0 {
			_ = s.wallets.Credit(ctx, userID, quote, amount)
		}
		return nil, err
	}

	if err := s.futures.Update(ctx, pos); err != nil {
		return nil, err
	}

	if amount < 0 {
		if err := s.wallets.Credit(ctx, userID, quote, -amount); err != nil {
			log.Printf("[futures] failed to credit withdrawn margin for position %d: %v", pos.ID, err)
		}
	}

	log.Printf("[futures] position %d margin adjusted by %v, liq=%v", pos.ID, amount, pos.LiquidationPrice)
	return pos, nil
}

// ListPositions возвращает открытые позиции пользователя с расчётными полями
func (s *FuturesService) ListPositions(ctx context.Context, userID int) ([]FuturesPositionView, error) {
	positions, err := s.futures.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]FuturesPositionView, 0, len(positions))
	for i := range positions {
		pos := positions[i]
		mark := s.prices.Price(pos.Symbol)
		view := FuturesPositionView{FuturesPosition: pos, MarkPrice: mark}
		if mark > 0 {
			view.UnrealizedPnL = sim.FuturesUnrealizedPnL(&pos, mark)
			view.ROE = sim.ROE(&pos, mark)
		}
		views = append(views, view)
	}
	return views, nil
}

// getOwned возвращает позицию пользователя, скрывая чужие
func (s *FuturesService) getOwned(ctx context.Context, userID, id int) (*models.FuturesPosition, error) {
	pos, err := s.futures.GetByID(ctx, id)
	if errors.Is(err, repository.ErrFuturesPositionNotFound) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	if pos.UserID != userID {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}
