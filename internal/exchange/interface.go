package exchange

import (
	"context"
	"time"
)

// Credentials содержит API ключи пользователя для одной биржи.
// Никогда не сохраняются ядром в открытом виде: шифрование выполняет сервисный слой.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string // только для KuCoin
}

// Balance представляет нормализованный баланс по одной валюте
type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Total     float64 `json:"total"`
}

// OrderRequest описывает запрос на размещение ордера.
// Для market-buy может быть указан либо QuoteAmount (сумма в котируемой валюте),
// либо Quantity. При наличии обоих приоритет у QuoteAmount.
type OrderRequest struct {
	Symbol      string  `json:"symbol"` // канонический вид BASEQUOTE (BTCUSDT)
	Side        string  `json:"side"`   // buy, sell
	Type        string  `json:"type"`   // market, limit
	Quantity    float64 `json:"quantity,omitempty"`
	QuoteAmount float64 `json:"quote_amount,omitempty"`
	Price       float64 `json:"price,omitempty"`
}

// OrderResult представляет результат размещения или запроса ордера
type OrderResult struct {
	ExchangeOrderID string  `json:"exchange_order_id"`
	Status          string  `json:"status"`
	ExecutedQty     float64 `json:"executed_qty"`
	ExecutedQuote   float64 `json:"executed_quote"`
}

// Exchange определяет унифицированный интерфейс для работы с любой биржей.
//
// Адаптеры stateless: ключи передаются в каждый вызов, что позволяет
// обслуживать множество пользователей одним экземпляром адаптера.
//
// PlaceOrder — единственная мутирующая операция. Адаптеры НЕ повторяют её
// автоматически при неоднозначных сбоях (таймаут после отправки): вызывающий
// обязан сначала запросить статус через GetOrder. Операции чтения безопасно
// повторяются с backoff.
type Exchange interface {
	// GetName возвращает имя биржи
	GetName() string

	// GetBalances получает балансы аккаунта, нормализованные к каноническому виду
	GetBalances(ctx context.Context, creds Credentials) ([]Balance, error)

	// PlaceOrder размещает ордер на бирже
	PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error)

	// GetOrder возвращает состояние ордера по его биржевому ID
	GetOrder(ctx context.Context, creds Credentials, symbol, orderID string) (*OrderResult, error)

	// ValidateCredentials проверяет валидность ключей тестовым запросом
	ValidateCredentials(ctx context.Context, creds Credentials) error
}

// Статусы ордера на бирже
const (
	OrderStatusNew             = "new"
	OrderStatusFilled          = "filled"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRejected        = "rejected"
)

// Стороны ордера
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const defaultRequestTimeout = 10 * time.Second

// normalizeBalances схлопывает дубликаты валют в один канонический баланс.
// Некоторые биржи возвращают одну валюту в нескольких строках (спот + earn и т.п.);
// без схлопывания средства учитывались бы дважды. Первый ненулевой выигрывает.
func normalizeBalances(raw []Balance) []Balance {
	seen := make(map[string]int, len(raw)) // currency -> индекс в result
	result := make([]Balance, 0, len(raw))

	for _, b := range raw {
		idx, ok := seen[b.Currency]
		if !ok {
			seen[b.Currency] = len(result)
			result = append(result, b)
			continue
		}
		// Дубликат: берём первый ненулевой, нулевые записи не затирают данные
		if result[idx].Total == 0 && b.Total != 0 {
			result[idx] = b
		}
	}

	return result
}
