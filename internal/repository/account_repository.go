package repository

import (
	"context"
	"database/sql"
	"errors"

	"cryptosim/internal/models"
)

// ErrAccountNotFound - привязанный аккаунт биржи отсутствует
var ErrAccountNotFound = errors.New("exchange account not found")

// AccountRepository - работа с таблицей exchange_accounts.
// Ключи хранятся только в зашифрованном виде: шифрует сервисный слой.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, exchange, api_key, api_secret, passphrase, platform, mirroring, last_error, updated_at, created_at`

// Get возвращает аккаунт пользователя на бирже
func (r *AccountRepository) Get(ctx context.Context, userID int, exchange string) (*models.ExchangeAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM exchange_accounts WHERE user_id = $1 AND exchange = $2`

	acc := &models.ExchangeAccount{}
	err := r.db.QueryRowContext(ctx, query, userID, exchange).Scan(
		&acc.ID,
		&acc.UserID,
		&acc.Exchange,
		&acc.APIKey,
		&acc.APISecret,
		&acc.Passphrase,
		&acc.Platform,
		&acc.Mirroring,
		&acc.LastError,
		&acc.UpdatedAt,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// GetByUser возвращает все привязанные аккаунты пользователя
func (r *AccountRepository) GetByUser(ctx context.Context, userID int) ([]models.ExchangeAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM exchange_accounts WHERE user_id = $1 ORDER BY exchange`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.ExchangeAccount
	for rows.Next() {
		var acc models.ExchangeAccount
		err := rows.Scan(
			&acc.ID,
			&acc.UserID,
			&acc.Exchange,
			&acc.APIKey,
			&acc.APISecret,
			&acc.Passphrase,
			&acc.Platform,
			&acc.Mirroring,
			&acc.LastError,
			&acc.UpdatedAt,
			&acc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// Upsert создаёт или заменяет аккаунт (user_id + exchange уникальны).
// Замена ключей сбрасывает platform: регион переопределяется заново.
func (r *AccountRepository) Upsert(ctx context.Context, acc *models.ExchangeAccount) error {
	query := `
		INSERT INTO exchange_accounts (user_id, exchange, api_key, api_secret, passphrase, platform, mirroring, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', NOW(), NOW())
		ON CONFLICT (user_id, exchange)
		DO UPDATE SET api_key = EXCLUDED.api_key, api_secret = EXCLUDED.api_secret, passphrase = EXCLUDED.passphrase,
		              platform = EXCLUDED.platform, mirroring = EXCLUDED.mirroring, last_error = '', updated_at = NOW()
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		acc.UserID,
		acc.Exchange,
		acc.APIKey,
		acc.APISecret,
		acc.Passphrase,
		acc.Platform,
		acc.Mirroring,
	).Scan(&acc.ID)
}

// SetPlatform сохраняет выбранный региональный endpoint
func (r *AccountRepository) SetPlatform(ctx context.Context, userID int, exchange, platform string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE exchange_accounts SET platform = $3, updated_at = NOW() WHERE user_id = $1 AND exchange = $2`,
		userID, exchange, platform)
	return err
}

// SetLastError сохраняет последнюю ошибку работы с биржей (пустая строка - сброс)
func (r *AccountRepository) SetLastError(ctx context.Context, userID int, exchange, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE exchange_accounts SET last_error = $3, updated_at = NOW() WHERE user_id = $1 AND exchange = $2`,
		userID, exchange, lastError)
	return err
}

// Delete удаляет привязку аккаунта
func (r *AccountRepository) Delete(ctx context.Context, userID int, exchange string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM exchange_accounts WHERE user_id = $1 AND exchange = $2`, userID, exchange)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
