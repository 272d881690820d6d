package exchange

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Классы ошибок биржевого слоя. Адаптеры оборачивают их в ExchangeError,
// поэтому проверка всегда через errors.Is / классификаторы ниже.
var (
	// ErrUnauthorized - невалидные или истёкшие API ключи. Не повторяется.
	ErrUnauthorized = errors.New("invalid or expired API credentials")

	// ErrGeoRestricted - биржа недоступна из региона. Отличается от ErrUnauthorized,
	// чтобы пользователю можно было предложить альтернативный регион/биржу.
	ErrGeoRestricted = errors.New("exchange is not available from this region")

	// ErrRateLimited - превышен лимит запросов. Повторяется с учётом retry-after.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInsufficientFunds - недостаточно средств для ордера
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidSymbol - биржа не знает такой торговой пары
	ErrInvalidSymbol = errors.New("invalid trading symbol")

	// ErrOrderRejected - ордер отклонён биржей
	ErrOrderRejected = errors.New("order rejected by exchange")

	// ErrNetwork - транзиентная сетевая ошибка. Повторяется только для чтений.
	ErrNetwork = errors.New("network error")

	// ErrBadSecret - секрет не декодируется (например, не-base64 для Kraken).
	// Ошибка конфигурации: выявляется на границе адаптера, не внутри подписи.
	ErrBadSecret = errors.New("malformed API secret")
)

// ExchangeError представляет ошибку от биржи с классификацией
type ExchangeError struct {
	Exchange   string
	Code       string
	Message    string
	HTTPStatus int
	RetryAfter time.Duration // подсказка биржи при rate limit (0 если нет)
	Class      error         // один из классов выше
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: [%s] %s", e.Exchange, e.Code, e.Message)
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает класс ошибки для поддержки errors.Is()
func (e *ExchangeError) Unwrap() error {
	return e.Class
}

// classifyHTTP сопоставляет HTTP статус классу ошибки.
// 451 и 403 считаются гео-блокировкой: так отвечают binance.com из
// ограниченных регионов, при невалидных ключах приходит 401.
func classifyHTTP(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden, status == http.StatusUnavailableForLegalReasons:
		return ErrGeoRestricted
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrNetwork
	default:
		return ErrOrderRejected
	}
}

// IsAuthError возвращает true для ошибок аутентификации
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsGeoRestricted возвращает true для гео-блокировок
func IsGeoRestricted(err error) bool {
	return errors.Is(err, ErrGeoRestricted)
}

// IsRateLimited возвращает true при превышении лимита запросов
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable возвращает true если операцию ЧТЕНИЯ можно повторить.
// Мутирующие операции (PlaceOrder) не повторяются независимо от класса ошибки.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}

// RetryAfterHint извлекает подсказку retry-after из ошибки (0 если нет)
func RetryAfterHint(err error) time.Duration {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.RetryAfter
	}
	return 0
}
