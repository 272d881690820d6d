package repository

import (
	"context"
	"database/sql"
	"errors"

	"cryptosim/internal/models"
)

// Ошибки репозитория кошельков
var (
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance - списание не прошло guard balance >= amount
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// WalletRepository - работа с таблицей wallets (балансы по валютам)
type WalletRepository struct {
	db *sql.DB
}

// NewWalletRepository создает новый экземпляр репозитория
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Get возвращает кошелёк пользователя по валюте
func (r *WalletRepository) Get(ctx context.Context, userID int, currency string) (*models.Wallet, error) {
	query := `
		SELECT id, user_id, currency, balance, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2`

	wallet := &models.Wallet{}
	err := r.db.QueryRowContext(ctx, query, userID, currency).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Currency,
		&wallet.Balance,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

// GetByUser возвращает все кошельки пользователя
func (r *WalletRepository) GetByUser(ctx context.Context, userID int) ([]models.Wallet, error) {
	query := `
		SELECT id, user_id, currency, balance, updated_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY currency`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var wallet models.Wallet
		if err := rows.Scan(&wallet.ID, &wallet.UserID, &wallet.Currency, &wallet.Balance, &wallet.UpdatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

// Debit списывает средства. Guard balance >= amount в самом UPDATE:
// баланс не может уйти в минус даже при конкурентных списаниях.
func (r *WalletRepository) Debit(ctx context.Context, userID int, currency string, amount float64) error {
	query := `
		UPDATE wallets
		SET balance = balance - $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2 AND balance >= $3`

	result, err := r.db.ExecContext(ctx, query, userID, currency, amount)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Credit зачисляет средства, создавая кошелёк при первом зачислении валюты
func (r *WalletRepository) Credit(ctx context.Context, userID int, currency string, amount float64) error {
	query := `
		INSERT INTO wallets (user_id, currency, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, userID, currency, amount)
	return err
}
