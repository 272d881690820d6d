package exchange

import "fmt"

// NewExchange создаёт адаптер биржи по имени
func NewExchange(name string) (Exchange, error) {
	switch name {
	case "binance":
		return NewBinance(), nil
	case "kraken":
		return NewKraken(), nil
	case "kucoin":
		return NewKuCoin(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// SupportedExchanges возвращает список поддерживаемых бирж
func SupportedExchanges() []string {
	return []string{"binance", "kraken", "kucoin"}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	for _, e := range SupportedExchanges() {
		if e == name {
			return true
		}
	}
	return false
}
