package service

import (
	"context"
	"errors"
	"strings"

	"cryptosim/internal/models"
	"cryptosim/internal/repository"
)

// Ошибки сервиса алертов
var (
	ErrInvalidAlert  = errors.New("invalid alert parameters")
	ErrAlertNotFound = errors.New("alert not found")
)

// AlertService управляет ценовыми алертами пользователя.
// Срабатывание алертов выполняет движок симуляции на живых тиках,
// сервис отвечает только за CRUD.
type AlertService struct {
	alerts AlertRepositoryInterface
	prices PriceSource
}

// NewAlertService создает новый экземпляр сервиса
func NewAlertService(alerts AlertRepositoryInterface, prices PriceSource) *AlertService {
	return &AlertService{alerts: alerts, prices: prices}
}

// CreateAlert создает ценовой алерт
func (s *AlertService) CreateAlert(ctx context.Context, userID int, symbol string, targetPrice float64, direction string) (*models.PriceAlert, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if targetPrice <= 0 {
		return nil, ErrInvalidAlert
	}
	if direction != models.AlertDirectionAbove && direction != models.AlertDirectionBelow {
		return nil, ErrInvalidAlert
	}
	if s.prices.Price(symbol) <= 0 {
		return nil, ErrUnknownSymbol
	}

	alert := &models.PriceAlert{
		UserID:      userID,
		Symbol:      symbol,
		TargetPrice: targetPrice,
		Direction:   direction,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// ListAlerts возвращает все алерты пользователя
func (s *AlertService) ListAlerts(ctx context.Context, userID int) ([]models.PriceAlert, error) {
	return s.alerts.GetByUser(ctx, userID)
}

// DeleteAlert удаляет алерт пользователя
func (s *AlertService) DeleteAlert(ctx context.Context, userID, id int) error {
	err := s.alerts.Delete(ctx, id, userID)
	if errors.Is(err, repository.ErrAlertNotFound) {
		return ErrAlertNotFound
	}
	return err
}
