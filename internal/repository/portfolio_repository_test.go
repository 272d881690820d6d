package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cryptosim/internal/models"
)

func TestPortfolioRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	columns := []string{"id", "user_id", "symbol", "quantity", "avg_buy_price", "updated_at"}
	mock.ExpectQuery(`SELECT (.+) FROM portfolio_positions`).
		WithArgs(7, "BTCUSDT").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, 7, "BTCUSDT", 0.25, 58000.0, time.Now()))

	repo := NewPortfolioRepository(db)
	pos, err := repo.Get(context.Background(), 7, "BTCUSDT")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if pos.Quantity != 0.25 || pos.AvgBuyPrice != 58000 {
		t.Errorf("unexpected position: %+v", pos)
	}
}

func TestPortfolioRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM portfolio_positions`).
		WithArgs(7, "DOGEUSDT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewPortfolioRepository(db)
	_, err = repo.Get(context.Background(), 7, "DOGEUSDT")

	if !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestPortfolioRepositoryGetByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	columns := []string{"id", "user_id", "symbol", "quantity", "avg_buy_price", "updated_at"}
	mock.ExpectQuery(`SELECT (.+) FROM portfolio_positions`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, 7, "BTCUSDT", 0.25, 58000.0, now).
			AddRow(2, 7, "ETHUSDT", 3.0, 3900.0, now))

	repo := NewPortfolioRepository(db)
	positions, err := repo.GetByUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[1].Symbol != "ETHUSDT" {
		t.Errorf("unexpected positions: %+v", positions)
	}
}

func TestPortfolioRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO portfolio_positions`).
		WithArgs(7, "BTCUSDT", 0.3, 58500.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPortfolioRepository(db)
	pos := &models.PortfolioPosition{UserID: 7, Symbol: "BTCUSDT", Quantity: 0.3, AvgBuyPrice: 58500}
	if err := repo.Save(context.Background(), pos); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
