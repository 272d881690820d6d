// Package repository - доступ к PostgreSQL. Обычный SQL с $n плейсхолдерами,
// sentinel ошибки для not-found и проигранных CAS переходов.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cryptosim/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrTradeNotFound = errors.New("trade not found")

	// ErrAlreadyTerminal - compare-and-set перехода статуса не прошёл:
	// строка уже в терминальном статусе (проигранная гонка fill/cancel)
	ErrAlreadyTerminal = errors.New("trade is already in a terminal status")
)

// TradeRepository - работа с таблицей trades (отложенные ордера)
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, user_id, symbol, side, type, quantity, limit_price, stop_price, exec_price, status, stop_triggered, created_at, filled_at`

// Create создает отложенный ордер в статусе pending
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	query := `
		INSERT INTO trades (user_id, symbol, side, type, quantity, limit_price, stop_price, status, stop_triggered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	trade.Status = models.TradeStatusPending
	trade.CreatedAt = time.Now()

	return r.db.QueryRowContext(ctx, query,
		trade.UserID,
		trade.Symbol,
		trade.Side,
		trade.Type,
		trade.Quantity,
		trade.LimitPrice,
		trade.StopPrice,
		trade.Status,
		trade.StopTriggered,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает ордер по ID
func (r *TradeRepository) GetByID(ctx context.Context, id int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	trade := &models.Trade{}
	err := r.scanTrade(r.db.QueryRowContext(ctx, query, id), trade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

// GetByUser возвращает все ордера пользователя, новые первыми
func (r *TradeRepository) GetByUser(ctx context.Context, userID int) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryTrades(ctx, query, userID)
}

// PendingBySymbol возвращает все pending ордера по символу (для прохода движка)
func (r *TradeRepository) PendingBySymbol(ctx context.Context, symbol string) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE symbol = $1 AND status = 'pending' ORDER BY created_at`
	return r.queryTrades(ctx, query, symbol)
}

// MarkCompleted атомарно переводит ордер pending -> completed с ценой исполнения.
// Условие status='pending' - арбитр гонки с отменой: 0 строк значит
// терминальный статус уже выставлен другим писателем.
func (r *TradeRepository) MarkCompleted(ctx context.Context, id int, execPrice float64, stopTriggered bool) error {
	query := `
		UPDATE trades
		SET status = 'completed', exec_price = $2, stop_triggered = stop_triggered OR $3, filled_at = $4
		WHERE id = $1 AND status = 'pending'`

	return r.checkCAS(r.db.ExecContext(ctx, query, id, execPrice, stopTriggered, time.Now()))
}

// MarkCancelled атомарно переводит ордер pending -> cancelled (отмена пользователем).
// Отмена завершённого ордера возвращает ErrAlreadyTerminal.
func (r *TradeRepository) MarkCancelled(ctx context.Context, id, userID int) error {
	query := `
		UPDATE trades
		SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status = 'pending'`

	return r.checkCAS(r.db.ExecContext(ctx, query, id, userID))
}

// ForceCancel безусловно переводит ордер в cancelled.
// Компенсация движка для строки, чей CAS он уже выиграл.
func (r *TradeRepository) ForceCancel(ctx context.Context, id int) error {
	query := `UPDATE trades SET status = 'cancelled', exec_price = 0, filled_at = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// checkCAS превращает "0 строк обновлено" в ErrAlreadyTerminal
func (r *TradeRepository) checkCAS(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]models.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var trade models.Trade
		if err := r.scanTrade(rows, &trade); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// scanner покрывает *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *TradeRepository) scanTrade(s scanner, trade *models.Trade) error {
	return s.Scan(
		&trade.ID,
		&trade.UserID,
		&trade.Symbol,
		&trade.Side,
		&trade.Type,
		&trade.Quantity,
		&trade.LimitPrice,
		&trade.StopPrice,
		&trade.ExecPrice,
		&trade.Status,
		&trade.StopTriggered,
		&trade.CreatedAt,
		&trade.FilledAt,
	)
}
