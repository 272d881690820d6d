package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cryptosim/internal/models"
)

// ErrFuturesPositionNotFound - фьючерсная позиция отсутствует
var ErrFuturesPositionNotFound = errors.New("futures position not found")

// FuturesRepository - работа с таблицей futures_positions
type FuturesRepository struct {
	db *sql.DB
}

// NewFuturesRepository создает новый экземпляр репозитория
func NewFuturesRepository(db *sql.DB) *FuturesRepository {
	return &FuturesRepository{db: db}
}

const futuresColumns = `id, user_id, symbol, side, quantity, entry_price, leverage, margin_mode, isolated_margin, liquidation_price, status, realized_pnl, created_at, closed_at`

// Create сохраняет открытую позицию
func (r *FuturesRepository) Create(ctx context.Context, pos *models.FuturesPosition) error {
	query := `
		INSERT INTO futures_positions (user_id, symbol, side, quantity, entry_price, leverage, margin_mode, isolated_margin, liquidation_price, status, realized_pnl, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	pos.CreatedAt = time.Now()

	return r.db.QueryRowContext(ctx, query,
		pos.UserID,
		pos.Symbol,
		pos.Side,
		pos.Quantity,
		pos.EntryPrice,
		pos.Leverage,
		pos.MarginMode,
		pos.IsolatedMargin,
		pos.LiquidationPrice,
		pos.Status,
		pos.RealizedPnL,
		pos.CreatedAt,
	).Scan(&pos.ID)
}

// GetByID возвращает позицию по ID
func (r *FuturesRepository) GetByID(ctx context.Context, id int) (*models.FuturesPosition, error) {
	query := `SELECT ` + futuresColumns + ` FROM futures_positions WHERE id = $1`

	pos := &models.FuturesPosition{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pos.ID,
		&pos.UserID,
		&pos.Symbol,
		&pos.Side,
		&pos.Quantity,
		&pos.EntryPrice,
		&pos.Leverage,
		&pos.MarginMode,
		&pos.IsolatedMargin,
		&pos.LiquidationPrice,
		&pos.Status,
		&pos.RealizedPnL,
		&pos.CreatedAt,
		&pos.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFuturesPositionNotFound
		}
		return nil, err
	}
	return pos, nil
}

// GetOpenByUser возвращает открытые позиции пользователя
func (r *FuturesRepository) GetOpenByUser(ctx context.Context, userID int) ([]models.FuturesPosition, error) {
	query := `SELECT ` + futuresColumns + ` FROM futures_positions WHERE user_id = $1 AND status = 'open' ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.FuturesPosition
	for rows.Next() {
		var pos models.FuturesPosition
		err := rows.Scan(
			&pos.ID,
			&pos.UserID,
			&pos.Symbol,
			&pos.Side,
			&pos.Quantity,
			&pos.EntryPrice,
			&pos.Leverage,
			&pos.MarginMode,
			&pos.IsolatedMargin,
			&pos.LiquidationPrice,
			&pos.Status,
			&pos.RealizedPnL,
			&pos.CreatedAt,
			&pos.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Update сохраняет изменяемые поля позиции после закрытия или перевода маржи
func (r *FuturesRepository) Update(ctx context.Context, pos *models.FuturesPosition) error {
	query := `
		UPDATE futures_positions
		SET quantity = $2, isolated_margin = $3, liquidation_price = $4, status = $5, realized_pnl = $6, closed_at = $7
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		pos.ID,
		pos.Quantity,
		pos.IsolatedMargin,
		pos.LiquidationPrice,
		pos.Status,
		pos.RealizedPnL,
		pos.ClosedAt,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFuturesPositionNotFound
	}
	return nil
}
