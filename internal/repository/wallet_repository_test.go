package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// TestWalletRepositoryDebit проверяет guard balance >= amount в UPDATE
func TestWalletRepositoryDebit(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantErr      error
	}{
		{"sufficient balance", 1, nil},
		{"insufficient balance", 0, ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE wallets`).
				WithArgs(7, "USDT", 500.0).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			repo := NewWalletRepository(db)
			err = repo.Debit(context.Background(), 7, "USDT", 500)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Debit = %v, want %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

// TestWalletRepositoryCredit: зачисление создаёт кошелёк при первом обращении
func TestWalletRepositoryCredit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO wallets`).
		WithArgs(7, "BTC", 0.5).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewWalletRepository(db)
	if err := repo.Credit(context.Background(), 7, "BTC", 0.5); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWalletRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM wallets`).
		WithArgs(7, "XRP").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewWalletRepository(db)
	_, err = repo.Get(context.Background(), 7, "XRP")

	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound, got %v", err)
	}
}
