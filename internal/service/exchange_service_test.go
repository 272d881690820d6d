package service

import (
	"context"
	"errors"
	"testing"

	"cryptosim/internal/exchange"
	"cryptosim/pkg/crypto"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newExchangeFixture(adapter *MockExchange) (*ExchangeService, *MockAccountRepository) {
	accounts := NewMockAccountRepository()
	svc := NewExchangeService(accounts, testEncryptionKey)
	svc.newExchange = func(name string) (exchange.Exchange, error) {
		if !exchange.IsSupported(name) {
			return nil, errors.New("unsupported")
		}
		return adapter, nil
	}
	return svc, accounts
}

// TestConnectExchangeEncryptsKeys: ключи проверяются тестовым запросом
// и сохраняются только в зашифрованном виде
func TestConnectExchangeEncryptsKeys(t *testing.T) {
	svc, accounts := newExchangeFixture(&MockExchange{name: "binance"})

	_, err := svc.ConnectExchange(context.Background(), 7, "Binance", "my-api-key", "my-secret", "", true)
	if err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}

	stored, err := accounts.Get(context.Background(), 7, "binance")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if stored.APIKey == "my-api-key" {
		t.Error("API key must not be stored in plaintext")
	}

	decrypted, err := crypto.Decrypt(stored.APIKey, testEncryptionKey)
	if err != nil {
		t.Fatalf("stored key is not decryptable: %v", err)
	}
	if decrypted != "my-api-key" {
		t.Errorf("decrypted key = %q, want my-api-key", decrypted)
	}
	if !stored.Mirroring {
		t.Error("mirroring flag was not stored")
	}
}

func TestConnectExchangeInvalidCredentials(t *testing.T) {
	svc, accounts := newExchangeFixture(&MockExchange{
		name:        "binance",
		validateErr: exchange.ErrUnauthorized,
	})

	_, err := svc.ConnectExchange(context.Background(), 7, "binance", "bad-key", "bad-secret", "", false)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !errors.Is(err, exchange.ErrUnauthorized) {
		t.Errorf("original exchange error must be preserved in the chain")
	}
	if len(accounts.accounts) != 0 {
		t.Error("invalid credentials must not be stored")
	}
}

func TestConnectExchangeUnsupported(t *testing.T) {
	svc, _ := newExchangeFixture(&MockExchange{name: "binance"})

	_, err := svc.ConnectExchange(context.Background(), 7, "bitmex", "key", "secret", "", false)
	if !errors.Is(err, ErrExchangeNotSupported) {
		t.Errorf("expected ErrExchangeNotSupported, got %v", err)
	}
}

func TestDisconnectExchange(t *testing.T) {
	svc, _ := newExchangeFixture(&MockExchange{name: "kraken"})

	if _, err := svc.ConnectExchange(context.Background(), 7, "kraken", "key", "secret", "", false); err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}

	if err := svc.DisconnectExchange(context.Background(), 7, "kraken"); err != nil {
		t.Fatalf("DisconnectExchange failed: %v", err)
	}

	if err := svc.DisconnectExchange(context.Background(), 7, "kraken"); !errors.Is(err, ErrExchangeNotConnected) {
		t.Errorf("second disconnect must fail, got %v", err)
	}
}

func TestSetMirroring(t *testing.T) {
	svc, accounts := newExchangeFixture(&MockExchange{name: "kucoin"})

	if _, err := svc.ConnectExchange(context.Background(), 7, "kucoin", "key", "secret", "phrase", false); err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}

	if err := svc.SetMirroring(context.Background(), 7, "kucoin", true); err != nil {
		t.Fatalf("SetMirroring failed: %v", err)
	}

	stored, _ := accounts.Get(context.Background(), 7, "kucoin")
	if !stored.Mirroring {
		t.Error("mirroring flag was not updated")
	}
}

// TestMirrorOrderOnlyEnabled: зеркалируются только аккаунты с включенным флагом
func TestMirrorOrderOnlyEnabled(t *testing.T) {
	adapter := &MockExchange{name: "binance"}
	svc, _ := newExchangeFixture(adapter)

	if _, err := svc.ConnectExchange(context.Background(), 7, "binance", "key-a", "secret-a", "", true); err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}
	if _, err := svc.ConnectExchange(context.Background(), 7, "kraken", "key-b", "secret-b", "", false); err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}

	svc.MirrorOrder(context.Background(), 7, MirrorOrderRequest{
		Symbol: "BTCUSDT", Side: "buy", Type: "market", QuoteAmount: 500,
	})

	if len(adapter.placed) != 1 {
		t.Fatalf("expected 1 mirrored order, got %d", len(adapter.placed))
	}
	if adapter.placed[0].QuoteAmount != 500 {
		t.Errorf("unexpected mirrored request: %+v", adapter.placed[0])
	}
}

// TestMirrorOrderFailureRecorded: ошибка зеркалирования пишется в last_error
// и не прерывает вызов
func TestMirrorOrderFailureRecorded(t *testing.T) {
	adapter := &MockExchange{name: "binance", placeErr: exchange.ErrGeoRestricted}
	svc, accounts := newExchangeFixture(adapter)

	if _, err := svc.ConnectExchange(context.Background(), 7, "binance", "key", "secret", "", true); err != nil {
		t.Fatalf("ConnectExchange failed: %v", err)
	}

	svc.MirrorOrder(context.Background(), 7, MirrorOrderRequest{
		Symbol: "BTCUSDT", Side: "buy", Type: "market", Quantity: 1,
	})

	stored, _ := accounts.Get(context.Background(), 7, "binance")
	if stored.LastError == "" {
		t.Error("mirror failure must be recorded in last_error")
	}
}
