package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"cryptosim/internal/exchange"
	"cryptosim/internal/models"
	"cryptosim/internal/repository"
	"cryptosim/pkg/crypto"
	"cryptosim/pkg/utils"
)

// mirrorLotSize - шаг объёма для зеркалируемых ордеров. Реальный шаг
// зависит от биржи и символа, 1e-6 принимают все поддерживаемые биржи.
const mirrorLotSize = 1e-6

// Ошибки сервиса бирж
var (
	ErrExchangeNotSupported = errors.New("exchange is not supported")
	ErrExchangeNotConnected = errors.New("exchange is not connected")
	ErrInvalidCredentials   = errors.New("invalid API credentials")
)

// MirrorOrderRequest описывает ордер для зеркалирования на живой аккаунт
type MirrorOrderRequest struct {
	Symbol      string
	Side        string
	Type        string
	Quantity    float64
	QuoteAmount float64
	Price       float64
}

// ExchangeService управляет привязкой биржевых аккаунтов.
//
// Отвечает за:
// - Проверку API ключей тестовым запросом перед сохранением
// - Шифрование ключей (AES-256-GCM) перед записью в БД
// - Зеркалирование симулируемых ордеров на живые аккаунты
//
// Адаптеры бирж stateless, поэтому кэшируются по имени биржи
// и разделяются между всеми пользователями.
type ExchangeService struct {
	accounts      AccountRepositoryInterface
	encryptionKey []byte

	adaptersMu sync.RWMutex
	adapters   map[string]exchange.Exchange

	// Фабрика адаптеров, подменяется в тестах
	newExchange func(name string) (exchange.Exchange, error)
}

// NewExchangeService создает новый экземпляр сервиса
func NewExchangeService(accounts AccountRepositoryInterface, encryptionKey []byte) *ExchangeService {
	return &ExchangeService{
		accounts:      accounts,
		encryptionKey: encryptionKey,
		adapters:      make(map[string]exchange.Exchange),
		newExchange:   exchange.NewExchange,
	}
}

// adapter возвращает кэшированный адаптер биржи
func (s *ExchangeService) adapter(name string) (exchange.Exchange, error) {
	s.adaptersMu.RLock()
	exch, ok := s.adapters[name]
	s.adaptersMu.RUnlock()
	if ok {
		return exch, nil
	}

	exch, err := s.newExchange(name)
	if err != nil {
		return nil, ErrExchangeNotSupported
	}

	s.adaptersMu.Lock()
	s.adapters[name] = exch
	s.adaptersMu.Unlock()
	return exch, nil
}

// ConnectExchange привязывает биржевой аккаунт с указанными API ключами.
// Выполняет:
// 1. Проверку поддержки биржи
// 2. Тестовый запрос для проверки валидности ключей
// 3. Шифрование ключей перед сохранением
// 4. Upsert в БД (повторная привязка заменяет ключи)
func (s *ExchangeService) ConnectExchange(ctx context.Context, userID int, name, apiKey, apiSecret, passphrase string, mirroring bool) (*models.ExchangeAccount, error) {
	name = strings.ToLower(name)
	if !exchange.IsSupported(name) {
		return nil, ErrExchangeNotSupported
	}

	exch, err := s.adapter(name)
	if err != nil {
		return nil, err
	}

	creds := exchange.Credentials{APIKey: apiKey, APISecret: apiSecret, Passphrase: passphrase}
	if err := exch.ValidateCredentials(ctx, creds); err != nil {
		return nil, errors.Join(ErrInvalidCredentials, err)
	}

	// При замене ключей сбрасывается кэш региональной платформы старого ключа
	if existing, err := s.accounts.Get(ctx, userID, name); err == nil {
		s.invalidatePlatform(exch, existing)
	}

	encKey, err := crypto.Encrypt(apiKey, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	encSecret, err := crypto.Encrypt(apiSecret, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	var encPassphrase string
	if passphrase != "" {
		encPassphrase, err = crypto.Encrypt(passphrase, s.encryptionKey)
		if err != nil {
			return nil, err
		}
	}

	account := &models.ExchangeAccount{
		UserID:     userID,
		Exchange:   name,
		APIKey:     encKey,
		APISecret:  encSecret,
		Passphrase: encPassphrase,
		Mirroring:  mirroring,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, err
	}

	log.Printf("[exchange-service] user %d connected %s (mirroring=%v)", userID, name, mirroring)
	return account, nil
}

// DisconnectExchange удаляет привязку аккаунта и его ключи
func (s *ExchangeService) DisconnectExchange(ctx context.Context, userID int, name string) error {
	name = strings.ToLower(name)

	account, err := s.accounts.Get(ctx, userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrExchangeNotConnected
		}
		return err
	}

	if exch, aerr := s.adapter(name); aerr == nil {
		s.invalidatePlatform(exch, account)
	}

	if err := s.accounts.Delete(ctx, userID, name); err != nil {
		return err
	}
	log.Printf("[exchange-service] user %d disconnected %s", userID, name)
	return nil
}

// SetMirroring включает или выключает зеркалирование ордеров на живой аккаунт
func (s *ExchangeService) SetMirroring(ctx context.Context, userID int, name string, enabled bool) error {
	name = strings.ToLower(name)

	account, err := s.accounts.Get(ctx, userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrExchangeNotConnected
		}
		return err
	}

	account.Mirroring = enabled
	return s.accounts.Upsert(ctx, account)
}

// ListAccounts возвращает привязанные аккаунты пользователя.
// Зашифрованные ключи скрыты на уровне JSON-тегов модели.
func (s *ExchangeService) ListAccounts(ctx context.Context, userID int) ([]models.ExchangeAccount, error) {
	return s.accounts.GetByUser(ctx, userID)
}

// GetBalances возвращает живые балансы привязанного аккаунта
func (s *ExchangeService) GetBalances(ctx context.Context, userID int, name string) ([]exchange.Balance, error) {
	name = strings.ToLower(name)

	account, err := s.accounts.Get(ctx, userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrExchangeNotConnected
		}
		return nil, err
	}

	exch, err := s.adapter(name)
	if err != nil {
		return nil, err
	}

	creds, err := s.credentialsFor(account)
	if err != nil {
		return nil, err
	}

	balances, err := exch.GetBalances(ctx, creds)
	if err != nil {
		_ = s.accounts.SetLastError(ctx, userID, name, err.Error())
		return nil, err
	}

	if account.LastError != "" {
		_ = s.accounts.SetLastError(ctx, userID, name, "")
	}
	return balances, nil
}

// MirrorOrder зеркалирует ордер на все аккаунты пользователя с включенным
// зеркалированием. Ошибки не прерывают симуляцию: они записываются в
// last_error аккаунта и логируются. Размещение не повторяется автоматически.
func (s *ExchangeService) MirrorOrder(ctx context.Context, userID int, req MirrorOrderRequest) {
	accounts, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		log.Printf("[exchange-service] mirror: failed to load accounts for user %d: %v", userID, err)
		return
	}

	for _, account := range accounts {
		if !account.Mirroring {
			continue
		}

		exch, err := s.adapter(account.Exchange)
		if err != nil {
			continue
		}

		creds, err := s.credentialsFor(&account)
		if err != nil {
			log.Printf("[exchange-service] mirror: failed to decrypt %s credentials for user %d: %v", account.Exchange, userID, err)
			continue
		}

		// Количество округляется вниз до общего для бирж шага,
		// чтобы живой ордер не превысил симулируемый
		result, err := exch.PlaceOrder(ctx, creds, exchange.OrderRequest{
			Symbol:      req.Symbol,
			Side:        req.Side,
			Type:        req.Type,
			Quantity:    utils.RoundToLotSize(req.Quantity, mirrorLotSize),
			QuoteAmount: req.QuoteAmount,
			Price:       req.Price,
		})
		if err != nil {
			_ = s.accounts.SetLastError(ctx, userID, account.Exchange, err.Error())
			log.Printf("[exchange-service] mirror: %s order failed for user %d: %v", account.Exchange, userID, err)
			continue
		}

		_ = s.accounts.SetLastError(ctx, userID, account.Exchange, "")
		log.Printf("[exchange-service] mirror: %s order %s placed for user %d (status %s)",
			account.Exchange, result.ExchangeOrderID, userID, result.Status)
	}
}

// credentialsFor расшифровывает ключи аккаунта
func (s *ExchangeService) credentialsFor(account *models.ExchangeAccount) (exchange.Credentials, error) {
	apiKey, err := crypto.Decrypt(account.APIKey, s.encryptionKey)
	if err != nil {
		return exchange.Credentials{}, err
	}
	apiSecret, err := crypto.Decrypt(account.APISecret, s.encryptionKey)
	if err != nil {
		return exchange.Credentials{}, err
	}
	var passphrase string
	if account.Passphrase != "" {
		passphrase, err = crypto.Decrypt(account.Passphrase, s.encryptionKey)
		if err != nil {
			return exchange.Credentials{}, err
		}
	}
	return exchange.Credentials{APIKey: apiKey, APISecret: apiSecret, Passphrase: passphrase}, nil
}

// invalidatePlatform сбрасывает кэш регионального endpoint для ключа аккаунта.
// Поддерживается только адаптерами с региональными платформами (Binance).
func (s *ExchangeService) invalidatePlatform(exch exchange.Exchange, account *models.ExchangeAccount) {
	inv, ok := exch.(interface{ InvalidatePlatform(apiKey string) })
	if !ok {
		return
	}
	apiKey, err := crypto.Decrypt(account.APIKey, s.encryptionKey)
	if err != nil {
		return
	}
	inv.InvalidatePlatform(apiKey)
}
