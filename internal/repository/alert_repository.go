package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cryptosim/internal/models"
)

// ErrAlertNotFound - алерт отсутствует или принадлежит другому пользователю
var ErrAlertNotFound = errors.New("price alert not found")

// AlertRepository - работа с таблицей price_alerts
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository создает новый экземпляр репозитория
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create создаёт активный алерт
func (r *AlertRepository) Create(ctx context.Context, alert *models.PriceAlert) error {
	query := `
		INSERT INTO price_alerts (user_id, symbol, target_price, direction, is_active, triggered, created_at)
		VALUES ($1, $2, $3, $4, true, false, $5)
		RETURNING id`

	alert.IsActive = true
	alert.Triggered = false
	alert.CreatedAt = time.Now()

	return r.db.QueryRowContext(ctx, query,
		alert.UserID,
		alert.Symbol,
		alert.TargetPrice,
		alert.Direction,
		alert.CreatedAt,
	).Scan(&alert.ID)
}

// ActiveBySymbol возвращает активные несработавшие алерты по символу
func (r *AlertRepository) ActiveBySymbol(ctx context.Context, symbol string) ([]models.PriceAlert, error) {
	query := `
		SELECT id, user_id, symbol, target_price, direction, is_active, triggered, created_at, triggered_at
		FROM price_alerts
		WHERE symbol = $1 AND is_active = true AND triggered = false`

	rows, err := r.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var alert models.PriceAlert
		err := rows.Scan(
			&alert.ID,
			&alert.UserID,
			&alert.Symbol,
			&alert.TargetPrice,
			&alert.Direction,
			&alert.IsActive,
			&alert.Triggered,
			&alert.CreatedAt,
			&alert.TriggeredAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// GetByUser возвращает все алерты пользователя
func (r *AlertRepository) GetByUser(ctx context.Context, userID int) ([]models.PriceAlert, error) {
	query := `
		SELECT id, user_id, symbol, target_price, direction, is_active, triggered, created_at, triggered_at
		FROM price_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var alert models.PriceAlert
		err := rows.Scan(
			&alert.ID,
			&alert.UserID,
			&alert.Symbol,
			&alert.TargetPrice,
			&alert.Direction,
			&alert.IsActive,
			&alert.Triggered,
			&alert.CreatedAt,
			&alert.TriggeredAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkTriggered переводит алерт в терминальное состояние.
// Условие is_active - защита от двойного срабатывания на соседних тиках.
func (r *AlertRepository) MarkTriggered(ctx context.Context, id int) error {
	query := `
		UPDATE price_alerts
		SET triggered = true, is_active = false, triggered_at = $2
		WHERE id = $1 AND is_active = true`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// Delete удаляет алерт пользователя
func (r *AlertRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}
