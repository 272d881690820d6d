package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptosim/pkg/ratelimit"
	"cryptosim/pkg/retry"
)

const (
	binanceGlobalURL  = "https://api.binance.com"
	binanceUSURL      = "https://api.binance.us"
	binanceRecvWindow = "5000"
)

// Binance реализует интерфейс Exchange для семейства Binance.
//
// Подпись: HMAC-SHA256 от полной query строки (включая timestamp и recvWindow),
// hex, добавляется параметром signature.
//
// Региональные базы (binance.com / binance.us) выбираются автоматически
// через PlatformDetector и кэшируются по API ключу.
type Binance struct {
	httpClient *http.Client
	translator *SymbolTranslator
	detector   *PlatformDetector
	limiter    *ratelimit.RateLimiter

	// baseOverride фиксирует базу вместо автоопределения (тесты, конфиг)
	baseOverride string
}

// NewBinance создаёт новый экземпляр Binance.
// Использует глобальный HTTP клиент с connection pooling.
func NewBinance() *Binance {
	b := &Binance{
		httpClient: GetGlobalHTTPClient().GetClient(),
		translator: NewSymbolTranslator("", nil, nil),
		limiter:    ratelimit.NewRateLimiter(10, 20),
	}
	b.detector = NewPlatformDetector([]string{binanceGlobalURL, binanceUSURL}, b.probeBase)
	return b
}

// NewBinanceWithBase создаёт экземпляр с фиксированной базой (без автоопределения)
func NewBinanceWithBase(base string) *Binance {
	b := NewBinance()
	b.baseOverride = base
	return b
}

func (b *Binance) GetName() string {
	return "binance"
}

// InvalidatePlatform сбрасывает кэш региональной базы для ключа.
// Обязателен к вызову при замене ключей пользователем.
func (b *Binance) InvalidatePlatform(apiKey string) {
	b.detector.Invalidate(apiKey)
}

// sign создаёт подпись HMAC-SHA256 (hex) от query строки
func (b *Binance) sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// parseFloat парсит строку в float64 с логированием ошибок
func (b *Binance) parseFloat(value, field string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil && value != "" {
		log.Printf("[binance] failed to parse %s %q: %v", field, value, err)
	}
	return result
}

// resolveBase возвращает базу для запросов: override или автоопределение
func (b *Binance) resolveBase(ctx context.Context, creds Credentials) (string, error) {
	if b.baseOverride != "" {
		return b.baseOverride, nil
	}
	return b.detector.Detect(ctx, creds)
}

// doRequest выполняет HTTP запрос к Binance API на указанной базе
func (b *Binance) doRequest(ctx context.Context, base string, creds Credentials, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	queryStr := query.Encode()
	if signed {
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		query.Set("recvWindow", binanceRecvWindow)
		queryStr = query.Encode()
		queryStr += "&signature=" + b.sign(creds.APISecret, queryStr)
	}

	var reqBody string
	reqURL := base + endpoint
	if method == http.MethodGet || method == http.MethodDelete {
		if queryStr != "" {
			reqURL += "?" + queryStr
		}
	} else {
		reqBody = queryStr
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", creds.APIKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: err.Error(), Class: ErrNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: err.Error(), Class: ErrNetwork}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, b.classifyError(resp, body)
	}

	return body, nil
}

// classifyError сопоставляет ответ Binance классу ошибки.
// Коды API специфичнее HTTP статуса, поэтому проверяются первыми.
func (b *Binance) classifyError(resp *http.Response, body []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &apiErr)

	exErr := &ExchangeError{
		Exchange:   "binance",
		Code:       strconv.Itoa(apiErr.Code),
		Message:    apiErr.Msg,
		HTTPStatus: resp.StatusCode,
	}

	switch apiErr.Code {
	case -2014, -2015, -1022: // bad API key format / rejected key / bad signature
		exErr.Class = ErrUnauthorized
	case -2010: // NEW_ORDER_REJECTED: insufficient balance
		exErr.Class = ErrInsufficientFunds
	case -1121:
		exErr.Class = ErrInvalidSymbol
	case -1003:
		exErr.Class = ErrRateLimited
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if sec, err := strconv.Atoi(ra); err == nil {
				exErr.RetryAfter = time.Duration(sec) * time.Second
			}
		}
	default:
		exErr.Class = classifyHTTP(resp.StatusCode)
	}

	return exErr
}

// probeBase пробует одну региональную базу: аутентификация + наличие средств
func (b *Binance) probeBase(ctx context.Context, base string, creds Credentials) (probeResult, error) {
	balances, err := b.getBalancesAt(ctx, base, creds)
	if err != nil {
		return probeFailed, err
	}
	for _, bal := range balances {
		if bal.Total > 0 {
			return probeOKWithFunds, nil
		}
	}
	return probeOKNoFunds, nil
}

// getBalancesAt запрашивает балансы на конкретной базе (без retry)
func (b *Binance) getBalancesAt(ctx context.Context, base string, creds Credentials) ([]Balance, error) {
	body, err := b.doRequest(ctx, base, creds, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(resp.Balances))
	for _, raw := range resp.Balances {
		free := b.parseFloat(raw.Free, "free")
		locked := b.parseFloat(raw.Locked, "locked")
		balances = append(balances, Balance{
			Currency:  raw.Asset,
			Available: free,
			Total:     free + locked,
		})
	}

	return normalizeBalances(balances), nil
}

func (b *Binance) GetBalances(ctx context.Context, creds Credentials) ([]Balance, error) {
	base, err := b.resolveBase(ctx, creds)
	if err != nil {
		return nil, err
	}

	return retry.DoWithResult(ctx, func() ([]Balance, error) {
		return b.getBalancesAt(ctx, base, creds)
	}, readRetryConfig())
}

func (b *Binance) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error) {
	base, err := b.resolveBase(ctx, creds)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol": b.translator.ToNative(req.Symbol),
		"side":   strings.ToUpper(req.Side),
		"type":   strings.ToUpper(req.Type),
	}

	switch {
	case req.Type == "market" && req.Side == SideBuy && req.QuoteAmount > 0:
		// market-buy на сумму: QuoteAmount приоритетнее Quantity
		params["quoteOrderQty"] = strconv.FormatFloat(req.QuoteAmount, 'f', -1, 64)
	default:
		params["quantity"] = strconv.FormatFloat(req.Quantity, 'f', -1, 64)
	}

	if req.Type == "limit" {
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
	}

	// Единственная мутирующая операция: без retry
	body, err := b.doRequest(ctx, base, creds, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID            int64  `json:"orderId"`
		Status             string `json:"status"`
		ExecutedQty        string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &OrderResult{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:          b.mapStatus(resp.Status),
		ExecutedQty:     b.parseFloat(resp.ExecutedQty, "executedQty"),
		ExecutedQuote:   b.parseFloat(resp.CummulativeQuoteQty, "cummulativeQuoteQty"),
	}, nil
}

func (b *Binance) GetOrder(ctx context.Context, creds Credentials, symbol, orderID string) (*OrderResult, error) {
	base, err := b.resolveBase(ctx, creds)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":  b.translator.ToNative(symbol),
		"orderId": orderID,
	}

	return retry.DoWithResult(ctx, func() (*OrderResult, error) {
		body, err := b.doRequest(ctx, base, creds, http.MethodGet, "/api/v3/order", params, true)
		if err != nil {
			return nil, err
		}

		var resp struct {
			OrderID            int64  `json:"orderId"`
			Status             string `json:"status"`
			ExecutedQty        string `json:"executedQty"`
			CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}

		return &OrderResult{
			ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
			Status:          b.mapStatus(resp.Status),
			ExecutedQty:     b.parseFloat(resp.ExecutedQty, "executedQty"),
			ExecutedQuote:   b.parseFloat(resp.CummulativeQuoteQty, "cummulativeQuoteQty"),
		}, nil
	}, readRetryConfig())
}

func (b *Binance) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := b.GetBalances(ctx, creds)
	return err
}

// mapStatus сопоставляет статус Binance каноническому
func (b *Binance) mapStatus(status string) string {
	switch status {
	case "NEW":
		return OrderStatusNew
	case "FILLED":
		return OrderStatusFilled
	case "PARTIALLY_FILLED":
		return OrderStatusPartiallyFilled
	case "CANCELED", "EXPIRED":
		return OrderStatusCancelled
	case "REJECTED":
		return OrderStatusRejected
	default:
		return strings.ToLower(status)
	}
}

// readRetryConfig - политика повторов для операций чтения:
// повторяются только транзиентные ошибки, rate limit уважает подсказку биржи
func readRetryConfig() retry.Config {
	cfg := retry.ConservativeConfig()
	cfg.RetryIf = IsRetryable
	cfg.DelayFromError = RetryAfterHint
	return cfg
}
