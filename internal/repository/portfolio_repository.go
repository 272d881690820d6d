package repository

import (
	"context"
	"database/sql"
	"errors"

	"cryptosim/internal/models"
)

// ErrPositionNotFound - позиция по символу отсутствует
var ErrPositionNotFound = errors.New("portfolio position not found")

// PortfolioRepository - работа с таблицей portfolio_positions
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository создает новый экземпляр репозитория
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Get возвращает позицию пользователя по символу
func (r *PortfolioRepository) Get(ctx context.Context, userID int, symbol string) (*models.PortfolioPosition, error) {
	query := `
		SELECT id, user_id, symbol, quantity, avg_buy_price, updated_at
		FROM portfolio_positions
		WHERE user_id = $1 AND symbol = $2`

	pos := &models.PortfolioPosition{}
	err := r.db.QueryRowContext(ctx, query, userID, symbol).Scan(
		&pos.ID,
		&pos.UserID,
		&pos.Symbol,
		&pos.Quantity,
		&pos.AvgBuyPrice,
		&pos.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return pos, nil
}

// GetByUser возвращает все позиции пользователя с ненулевым количеством
func (r *PortfolioRepository) GetByUser(ctx context.Context, userID int) ([]models.PortfolioPosition, error) {
	query := `
		SELECT id, user_id, symbol, quantity, avg_buy_price, updated_at
		FROM portfolio_positions
		WHERE user_id = $1 AND quantity > 0
		ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.PortfolioPosition
	for rows.Next() {
		var pos models.PortfolioPosition
		if err := rows.Scan(&pos.ID, &pos.UserID, &pos.Symbol, &pos.Quantity, &pos.AvgBuyPrice, &pos.UpdatedAt); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Save создаёт или обновляет позицию (user_id + symbol уникальны)
func (r *PortfolioRepository) Save(ctx context.Context, pos *models.PortfolioPosition) error {
	query := `
		INSERT INTO portfolio_positions (user_id, symbol, quantity, avg_buy_price, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET quantity = EXCLUDED.quantity, avg_buy_price = EXCLUDED.avg_buy_price, updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, pos.UserID, pos.Symbol, pos.Quantity, pos.AvgBuyPrice)
	return err
}
