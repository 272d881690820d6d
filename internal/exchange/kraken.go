package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
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

const krakenBaseURL = "https://api.kraken.com"

// Kraken реализует интерфейс Exchange для биржи Kraken.
//
// Подпись nonce-based: SHA-256 от (nonce + form-encoded тело) конкатенируется
// с путём URL, затем HMAC-SHA512 с ключом из base64-декодированного секрета,
// результат в base64. Секрет, не являющийся валидным base64, — ошибка
// конфигурации и выявляется до подписи (ErrBadSecret).
type Kraken struct {
	httpClient *http.Client
	translator *SymbolTranslator
	limiter    *ratelimit.RateLimiter
	base       string
}

// NewKraken создаёт новый экземпляр Kraken
func NewKraken() *Kraken {
	return &Kraken{
		httpClient: GetGlobalHTTPClient().GetClient(),
		translator: NewSymbolTranslator("",
			map[string]string{"BTC": "XBT", "DOGE": "XDG"},
			map[string]string{"USDT": "USD"},
		),
		limiter: ratelimit.NewRateLimiter(5, 10),
		base:    krakenBaseURL,
	}
}

// NewKrakenWithBase создаёт экземпляр с нестандартной базой (тесты)
func NewKrakenWithBase(base string) *Kraken {
	k := NewKraken()
	k.base = base
	return k
}

func (k *Kraken) GetName() string {
	return "kraken"
}

// sign создаёт подпись запроса: base64(HMAC-SHA512(path + SHA256(nonce+postdata), secret))
func (k *Kraken) sign(secret []byte, path, nonce, postdata string) string {
	sha := sha256.New()
	sha.Write([]byte(nonce + postdata))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(sha.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (k *Kraken) parseFloat(value, field string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil && value != "" {
		log.Printf("[kraken] failed to parse %s %q: %v", field, value, err)
	}
	return result
}

// doPrivate выполняет приватный POST запрос к Kraken API
func (k *Kraken) doPrivate(ctx context.Context, creds Credentials, path string, params map[string]string) (json.RawMessage, error) {
	// Декодируем секрет ДО подписи: невалидный base64 - ошибка конфигурации
	secret, err := base64.StdEncoding.DecodeString(creds.APISecret)
	if err != nil {
		return nil, &ExchangeError{Exchange: "kraken", Message: "API secret is not valid base64", Class: ErrBadSecret}
	}

	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	form := url.Values{}
	form.Set("nonce", nonce)
	for key, v := range params {
		form.Set(key, v)
	}
	postdata := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.base+path, strings.NewReader(postdata))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", creds.APIKey)
	req.Header.Set("API-Sign", k.sign(secret, path, nonce, postdata))

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: "kraken", Message: err.Error(), Class: ErrNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Exchange: "kraken", Message: err.Error(), Class: ErrNetwork}
	}

	var baseResp struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, &ExchangeError{Exchange: "kraken", Message: "malformed response", HTTPStatus: resp.StatusCode, Class: classifyHTTP(resp.StatusCode)}
	}

	if len(baseResp.Error) > 0 {
		return nil, k.classifyError(baseResp.Error[0], resp.StatusCode)
	}

	return baseResp.Result, nil
}

// classifyError сопоставляет коды ошибок Kraken (EAPI:..., EOrder:...) классам
func (k *Kraken) classifyError(code string, httpStatus int) error {
	exErr := &ExchangeError{
		Exchange:   "kraken",
		Code:       code,
		Message:    code,
		HTTPStatus: httpStatus,
	}

	switch {
	case strings.HasPrefix(code, "EAPI:Invalid key"), strings.HasPrefix(code, "EAPI:Invalid signature"), strings.HasPrefix(code, "EAPI:Invalid nonce"):
		exErr.Class = ErrUnauthorized
	case strings.Contains(code, "Rate limit"), strings.Contains(code, "Too many requests"):
		exErr.Class = ErrRateLimited
	case strings.HasPrefix(code, "EOrder:Insufficient funds"):
		exErr.Class = ErrInsufficientFunds
	case strings.HasPrefix(code, "EQuery:Unknown asset"), strings.HasPrefix(code, "EGeneral:Unknown asset"):
		exErr.Class = ErrInvalidSymbol
	case strings.HasPrefix(code, "EService:"):
		exErr.Class = ErrNetwork
	case strings.HasPrefix(code, "EOrder:"):
		exErr.Class = ErrOrderRejected
	default:
		exErr.Class = classifyHTTP(httpStatus)
	}

	return exErr
}

// restoreAsset приводит код актива Kraken к каноническому.
// Kraken использует legacy префиксы: XXBT, XETH, ZUSD и т.п.
func (k *Kraken) restoreAsset(asset string) string {
	if len(asset) == 4 && (asset[0] == 'X' || asset[0] == 'Z') {
		asset = asset[1:]
	}
	switch asset {
	case "XBT":
		return "BTC"
	case "XDG":
		return "DOGE"
	default:
		return asset
	}
}

func (k *Kraken) GetBalances(ctx context.Context, creds Credentials) ([]Balance, error) {
	return retry.DoWithResult(ctx, func() ([]Balance, error) {
		result, err := k.doPrivate(ctx, creds, "/0/private/Balance", nil)
		if err != nil {
			return nil, err
		}

		// Kraken возвращает map код_актива -> сумма строкой.
		// Endpoint отдаёт только общий баланс, available считаем равным total.
		var raw map[string]string
		if err := json.Unmarshal(result, &raw); err != nil {
			return nil, err
		}

		balances := make([]Balance, 0, len(raw))
		for asset, amount := range raw {
			total := k.parseFloat(amount, "balance")
			balances = append(balances, Balance{
				Currency:  k.restoreAsset(asset),
				Available: total,
				Total:     total,
			})
		}

		return normalizeBalances(balances), nil
	}, readRetryConfig())
}

func (k *Kraken) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error) {
	params := map[string]string{
		"pair":      k.translator.ToNative(req.Symbol),
		"type":      req.Side,
		"ordertype": req.Type,
	}

	if req.Type == "market" && req.Side == SideBuy && req.QuoteAmount > 0 {
		// Объём в котируемой валюте: QuoteAmount приоритетнее Quantity
		params["volume"] = strconv.FormatFloat(req.QuoteAmount, 'f', -1, 64)
		params["oflags"] = "viqc"
	} else {
		params["volume"] = strconv.FormatFloat(req.Quantity, 'f', -1, 64)
	}

	if req.Type == "limit" {
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}

	// Мутирующая операция: без retry
	result, err := k.doPrivate(ctx, creds, "/0/private/AddOrder", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TxID []string `json:"txid"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, err
	}
	if len(resp.TxID) == 0 {
		return nil, &ExchangeError{Exchange: "kraken", Message: "no txid in AddOrder response", Class: ErrOrderRejected}
	}

	// AddOrder не возвращает исполнение: дочитываем статус отдельным запросом
	return k.GetOrder(ctx, creds, req.Symbol, resp.TxID[0])
}

func (k *Kraken) GetOrder(ctx context.Context, creds Credentials, symbol, orderID string) (*OrderResult, error) {
	return retry.DoWithResult(ctx, func() (*OrderResult, error) {
		result, err := k.doPrivate(ctx, creds, "/0/private/QueryOrders", map[string]string{"txid": orderID})
		if err != nil {
			return nil, err
		}

		var raw map[string]struct {
			Status  string `json:"status"`
			VolExec string `json:"vol_exec"`
			Cost    string `json:"cost"`
		}
		if err := json.Unmarshal(result, &raw); err != nil {
			return nil, err
		}

		order, ok := raw[orderID]
		if !ok {
			return nil, &ExchangeError{Exchange: "kraken", Message: "order not found: " + orderID, Class: ErrOrderRejected}
		}

		return &OrderResult{
			ExchangeOrderID: orderID,
			Status:          k.mapStatus(order.Status),
			ExecutedQty:     k.parseFloat(order.VolExec, "vol_exec"),
			ExecutedQuote:   k.parseFloat(order.Cost, "cost"),
		}, nil
	}, readRetryConfig())
}

func (k *Kraken) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := k.GetBalances(ctx, creds)
	return err
}

// mapStatus сопоставляет статус Kraken каноническому
func (k *Kraken) mapStatus(status string) string {
	switch status {
	case "open", "pending":
		return OrderStatusNew
	case "closed":
		return OrderStatusFilled
	case "canceled", "expired":
		return OrderStatusCancelled
	default:
		return status
	}
}
