package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/repository"
)

// TradeStore - хранилище отложенных ордеров.
// MarkCompleted и MarkCancelled выполняют атомарный compare-and-set по статусу
// pending: проигравший гонки fill/cancel получает ErrAlreadyTerminal.
// ForceCancel - безусловная компенсация для строки, уже выигранной движком.
type TradeStore interface {
	PendingBySymbol(ctx context.Context, symbol string) ([]models.Trade, error)
	MarkCompleted(ctx context.Context, id int, execPrice float64, stopTriggered bool) error
	ForceCancel(ctx context.Context, id int) error
}

// WalletStore - балансы пользователя. Debit защищён от ухода в минус
// на уровне хранилища и возвращает ErrInsufficientBalance.
type WalletStore interface {
	Debit(ctx context.Context, userID int, currency string, amount float64) error
	Credit(ctx context.Context, userID int, currency string, amount float64) error
}

// PortfolioStore - спотовые позиции пользователя
type PortfolioStore interface {
	Get(ctx context.Context, userID int, symbol string) (*models.PortfolioPosition, error)
	Save(ctx context.Context, pos *models.PortfolioPosition) error
}

// AlertStore - ценовые алерты
type AlertStore interface {
	ActiveBySymbol(ctx context.Context, symbol string) ([]models.PriceAlert, error)
	MarkTriggered(ctx context.Context, id int) error
}

// Notifier доставляет уведомление пользователю. Сама доставка
// (Telegram, push) - внешний коллаборатор.
type Notifier interface {
	Notify(userID int, message string)
}

// Engine - движок симуляции: исполняет отложенные ордера по живым ценам.
//
// Работает одной горутиной над каналом тиков: по каждому тику один проход
// оценки всех pending ордеров символа. Два тика одного символа никогда не
// оцениваются конкурентно, поэтому внутри прохода нет блокировок.
type Engine struct {
	trades    TradeStore
	wallets   WalletStore
	portfolio PortfolioStore
	alerts    AlertStore
	notifier  Notifier
	ticks     <-chan models.Ticker
}

// NewEngine создаёт движок симуляции поверх канала тиков
func NewEngine(trades TradeStore, wallets WalletStore, portfolio PortfolioStore, alerts AlertStore, notifier Notifier, ticks <-chan models.Ticker) *Engine {
	return &Engine{
		trades:    trades,
		wallets:   wallets,
		portfolio: portfolio,
		alerts:    alerts,
		notifier:  notifier,
		ticks:     ticks,
	}
}

// Run обрабатывает тики до отмены контекста
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[sim] engine started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sim] engine stopped")
			return
		case tick := <-e.ticks:
			e.evaluateTick(ctx, tick)
		}
	}
}

// evaluateTick - один проход оценки по одному тику
func (e *Engine) evaluateTick(ctx context.Context, tick models.Ticker) {
	TicksProcessed.Inc()

	price := tick.LastPrice
	if price <= 0 {
		return
	}

	pending, err := e.trades.PendingBySymbol(ctx, tick.Symbol)
	if err != nil {
		log.Printf("[sim] failed to load pending orders for %s: %v", tick.Symbol, err)
	} else {
		for _, trade := range pending {
			if shouldFill(trade, price) {
				e.fill(ctx, trade, price, tick.UpdatedAt)
			}
		}
	}

	e.evaluateAlerts(ctx, tick.Symbol, price)
}

// shouldFill проверяет условие срабатывания ордера при текущей цене.
//
// Limit: buy при цене <= лимита, sell при цене >= лимита.
// Stop: breakout buy при цене >= стопа, stop-loss sell при цене <= стопа.
// Стоп одноразовый: после срабатывания ордер терминален и не перевзводится.
func shouldFill(trade models.Trade, price float64) bool {
	switch trade.Type {
	case models.TradeTypeLimit:
		if trade.LimitPrice <= 0 {
			return false
		}
		if trade.Side == models.TradeSideBuy {
			return price <= trade.LimitPrice
		}
		return price >= trade.LimitPrice
	case models.TradeTypeStop:
		if trade.StopPrice <= 0 {
			return false
		}
		if trade.Side == models.TradeSideBuy {
			return price >= trade.StopPrice
		}
		return price <= trade.StopPrice
	default:
		return false
	}
}

// fill исполняет ордер по текущей рыночной цене (не по лимитной/стоповой).
//
// Сначала compare-and-set статуса: гонка с отменой пользователя решается
// на уровне хранилища до движения средств. После выигранного CAS строка
// принадлежит движку, недостаток средств компенсируется ForceCancel.
func (e *Engine) fill(ctx context.Context, trade models.Trade, price float64, tickAt time.Time) {
	stopTriggered := trade.Type == models.TradeTypeStop

	err := e.trades.MarkCompleted(ctx, trade.ID, price, stopTriggered)
	if errors.Is(err, repository.ErrAlreadyTerminal) {
		// Пользователь успел отменить: ордер не исполняется
		return
	}
	if err != nil {
		log.Printf("[sim] failed to complete order %d: %v", trade.ID, err)
		return
	}

	base, quote := exchange.SplitCanonical(trade.Symbol)
	if quote == "" {
		log.Printf("[sim] order %d has unsplittable symbol %s", trade.ID, trade.Symbol)
		return
	}
	total := price * trade.Quantity

	if trade.Side == models.TradeSideBuy {
		err = e.wallets.Debit(ctx, trade.UserID, quote, total)
	} else {
		err = e.wallets.Debit(ctx, trade.UserID, base, trade.Quantity)
	}
	if errors.Is(err, repository.ErrInsufficientBalance) {
		e.cancelUnfunded(ctx, trade, price)
		return
	}
	if err != nil {
		log.Printf("[sim] wallet debit failed for order %d: %v", trade.ID, err)
		return
	}

	if trade.Side == models.TradeSideBuy {
		err = e.wallets.Credit(ctx, trade.UserID, base, trade.Quantity)
	} else {
		err = e.wallets.Credit(ctx, trade.UserID, quote, total)
	}
	if err != nil {
		log.Printf("[sim] wallet credit failed for order %d: %v", trade.ID, err)
	}

	realized := e.updatePortfolio(ctx, trade, price)

	TickToFillLatency.WithLabelValues(trade.Symbol).Observe(float64(time.Since(tickAt).Milliseconds()))
	OrdersFilled.WithLabelValues(trade.Type, trade.Side).Inc()

	msg := fmt.Sprintf("Order filled: %s %s %.8f %s at %.8f", trade.Side, trade.Type, trade.Quantity, trade.Symbol, price)
	if trade.Side == models.TradeSideSell {
		msg += fmt.Sprintf(" (realized PnL %.2f %s)", realized, quote)
	}
	e.notifier.Notify(trade.UserID, msg)

	log.Printf("[sim] order %d filled: %s %s %s qty=%v price=%v", trade.ID, trade.Side, trade.Type, trade.Symbol, trade.Quantity, price)
}

// cancelUnfunded компенсирует исполнение при недостатке средств:
// строка уже переведена в completed движком, откатывается безусловно
func (e *Engine) cancelUnfunded(ctx context.Context, trade models.Trade, price float64) {
	if err := e.trades.ForceCancel(ctx, trade.ID); err != nil {
		log.Printf("[sim] failed to cancel unfunded order %d: %v", trade.ID, err)
		return
	}
	OrdersCancelled.WithLabelValues("insufficient_funds").Inc()
	e.notifier.Notify(trade.UserID, fmt.Sprintf("Order cancelled: insufficient funds for %s %s %.8f %s at %.8f",
		trade.Side, trade.Type, trade.Quantity, trade.Symbol, price))
	log.Printf("[sim] order %d cancelled: insufficient funds", trade.ID)
}

// updatePortfolio обновляет спотовую позицию после исполнения.
// Возвращает реализованный PnL для продаж.
func (e *Engine) updatePortfolio(ctx context.Context, trade models.Trade, price float64) float64 {
	pos, err := e.portfolio.Get(ctx, trade.UserID, trade.Symbol)
	if errors.Is(err, repository.ErrPositionNotFound) {
		pos = &models.PortfolioPosition{UserID: trade.UserID, Symbol: trade.Symbol}
	} else if err != nil {
		log.Printf("[sim] failed to load position for order %d: %v", trade.ID, err)
		return 0
	}

	var realized float64
	if trade.Side == models.TradeSideBuy {
		ApplyBuy(pos, trade.Quantity, price)
	} else {
		// Кошелёк уже защитил продажу от превышения средств; позиция может
		// отставать (пополнения извне), поэтому продаётся не больше учтённого
		sellQty := trade.Quantity
		if sellQty > pos.Quantity {
			sellQty = pos.Quantity
		}
		realized, _ = ApplySell(pos, sellQty, price)
	}

	if err := e.portfolio.Save(ctx, pos); err != nil {
		log.Printf("[sim] failed to save position for order %d: %v", trade.ID, err)
	}
	return realized
}

// evaluateAlerts проверяет и взводит ценовые алерты символа
func (e *Engine) evaluateAlerts(ctx context.Context, symbol string, price float64) {
	alerts, err := e.alerts.ActiveBySymbol(ctx, symbol)
	if err != nil {
		log.Printf("[sim] failed to load alerts for %s: %v", symbol, err)
		return
	}

	for _, alert := range alerts {
		if !alert.ShouldTrigger(price) {
			continue
		}
		if err := e.alerts.MarkTriggered(ctx, alert.ID); err != nil {
			log.Printf("[sim] failed to trigger alert %d: %v", alert.ID, err)
			continue
		}
		AlertsTriggered.Inc()
		e.notifier.Notify(alert.UserID, fmt.Sprintf("Price alert: %s is %s %.8f (current %.8f)",
			symbol, alert.Direction, alert.TargetPrice, price))
	}
}
