package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptosim/pkg/ratelimit"
	"cryptosim/pkg/retry"
)

const kucoinBaseURL = "https://api.kucoin.com"

// KuCoin реализует интерфейс Exchange для биржи KuCoin.
//
// Подпись: HMAC-SHA256 от (timestamp + method + endpoint + body), base64.
// Passphrase не передаётся открытым текстом: он отдельно подписывается
// тем же секретом (API key version 2).
type KuCoin struct {
	httpClient *http.Client
	translator *SymbolTranslator
	limiter    *ratelimit.RateLimiter
	base       string
}

// NewKuCoin создаёт новый экземпляр KuCoin
func NewKuCoin() *KuCoin {
	return &KuCoin{
		httpClient: GetGlobalHTTPClient().GetClient(),
		translator: NewSymbolTranslator("-", nil, nil),
		limiter:    ratelimit.NewRateLimiter(10, 20),
		base:       kucoinBaseURL,
	}
}

// NewKuCoinWithBase создаёт экземпляр с нестандартной базой (тесты)
func NewKuCoinWithBase(base string) *KuCoin {
	c := NewKuCoin()
	c.base = base
	return c
}

func (c *KuCoin) GetName() string {
	return "kucoin"
}

// sign создаёт подпись base64(HMAC-SHA256(payload, secret))
func (c *KuCoin) sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *KuCoin) parseFloat(value, field string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil && value != "" {
		log.Printf("[kucoin] failed to parse %s %q: %v", field, value, err)
	}
	return result
}

// doRequest выполняет HTTP запрос к KuCoin API.
// endpoint должен включать query строку: она участвует в подписи.
func (c *KuCoin) doRequest(ctx context.Context, creds Credentials, method, endpoint string, reqBody []byte) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	payload := timestamp + method + endpoint + string(reqBody)

	req.Header.Set("KC-API-KEY", creds.APIKey)
	req.Header.Set("KC-API-SIGN", c.sign(creds.APISecret, payload))
	req.Header.Set("KC-API-TIMESTAMP", timestamp)
	req.Header.Set("KC-API-PASSPHRASE", c.sign(creds.APISecret, creds.Passphrase))
	req.Header.Set("KC-API-KEY-VERSION", "2")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: "kucoin", Message: err.Error(), Class: ErrNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Exchange: "kucoin", Message: err.Error(), Class: ErrNetwork}
	}

	var baseResp struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, &ExchangeError{Exchange: "kucoin", Message: "malformed response", HTTPStatus: resp.StatusCode, Class: classifyHTTP(resp.StatusCode)}
	}

	if baseResp.Code != "200000" {
		return nil, c.classifyError(baseResp.Code, baseResp.Msg, resp)
	}

	return baseResp.Data, nil
}

// classifyError сопоставляет коды KuCoin классам ошибок
func (c *KuCoin) classifyError(code, msg string, resp *http.Response) error {
	exErr := &ExchangeError{
		Exchange:   "kucoin",
		Code:       code,
		Message:    msg,
		HTTPStatus: resp.StatusCode,
	}

	switch code {
	case "400003", "400004", "400005", "400006", "400007", "411100":
		// невалидный ключ / passphrase / подпись / timestamp
		exErr.Class = ErrUnauthorized
	case "200004":
		exErr.Class = ErrInsufficientFunds
	case "400100":
		if strings.Contains(strings.ToLower(msg), "symbol") {
			exErr.Class = ErrInvalidSymbol
		} else {
			exErr.Class = ErrOrderRejected
		}
	case "429000":
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

func (c *KuCoin) GetBalances(ctx context.Context, creds Credentials) ([]Balance, error) {
	return retry.DoWithResult(ctx, func() ([]Balance, error) {
		data, err := c.doRequest(ctx, creds, http.MethodGet, "/api/v1/accounts", nil)
		if err != nil {
			return nil, err
		}

		// KuCoin дробит валюту по типам счетов (main, trade):
		// одна валюта приходит несколькими строками и схлопывается при нормализации
		var raw []struct {
			Currency  string `json:"currency"`
			Balance   string `json:"balance"`
			Available string `json:"available"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}

		balances := make([]Balance, 0, len(raw))
		for _, acc := range raw {
			balances = append(balances, Balance{
				Currency:  acc.Currency,
				Available: c.parseFloat(acc.Available, "available"),
				Total:     c.parseFloat(acc.Balance, "balance"),
			})
		}

		return normalizeBalances(balances), nil
	}, readRetryConfig())
}

func (c *KuCoin) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error) {
	order := map[string]string{
		"clientOid": strconv.FormatInt(time.Now().UnixNano(), 10),
		"symbol":    c.translator.ToNative(req.Symbol),
		"side":      req.Side,
		"type":      req.Type,
	}

	if req.Type == "market" && req.Side == SideBuy && req.QuoteAmount > 0 {
		// funds - сумма в котируемой валюте: приоритетнее size
		order["funds"] = strconv.FormatFloat(req.QuoteAmount, 'f', -1, 64)
	} else {
		order["size"] = strconv.FormatFloat(req.Quantity, 'f', -1, 64)
	}

	if req.Type == "limit" {
		order["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}

	reqBody, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	// Мутирующая операция: без retry
	data, err := c.doRequest(ctx, creds, http.MethodPost, "/api/v1/orders", reqBody)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	// Ответ на размещение не содержит исполнения: дочитываем статус
	return c.GetOrder(ctx, creds, req.Symbol, resp.OrderID)
}

func (c *KuCoin) GetOrder(ctx context.Context, creds Credentials, symbol, orderID string) (*OrderResult, error) {
	return retry.DoWithResult(ctx, func() (*OrderResult, error) {
		data, err := c.doRequest(ctx, creds, http.MethodGet, "/api/v1/orders/"+orderID, nil)
		if err != nil {
			return nil, err
		}

		var raw struct {
			ID          string `json:"id"`
			IsActive    bool   `json:"isActive"`
			CancelExist bool   `json:"cancelExist"`
			DealSize    string `json:"dealSize"`
			DealFunds   string `json:"dealFunds"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}

		status := OrderStatusFilled
		if raw.IsActive {
			status = OrderStatusNew
		} else if raw.CancelExist {
			status = OrderStatusCancelled
		}

		return &OrderResult{
			ExchangeOrderID: raw.ID,
			Status:          status,
			ExecutedQty:     c.parseFloat(raw.DealSize, "dealSize"),
			ExecutedQuote:   c.parseFloat(raw.DealFunds, "dealFunds"),
		}, nil
	}, readRetryConfig())
}

func (c *KuCoin) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := c.GetBalances(ctx, creds)
	return err
}
