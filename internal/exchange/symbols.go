package exchange

import "strings"

// symbols.go - двунаправленное преобразование символов
//
// Внутри ядра все символы в каноническом виде BASEQUOTE (BTCUSDT).
// Каждая биржа имеет свою нотацию:
// - Binance: совпадает с канонической (BTCUSDT)
// - Kraken:  свои тикеры активов (BTC -> XBT, DOGE -> XDG) и котировка USD
//            вместо USDT (XBTUSD)
// - KuCoin:  дефис между базой и котировкой (BTC-USDT)
//
// Все преобразования чистые и stateless. Свойство round-trip:
// ToCanonical(ToNative(s)) == s для всех поддерживаемых символов.

// knownQuotes - известные котируемые валюты в порядке убывания длины.
// Порядок важен: обратное преобразование ищет самый длинный суффикс,
// чтобы не спутать например SOLUSDT (SOL/USDT) с LUSDT как котировкой.
var knownQuotes = []string{"USDT", "USDC", "TUSD", "BUSD", "USD", "EUR", "BTC", "ETH"}

// SymbolTranslator преобразует канонические символы в нативный вид биржи и обратно
type SymbolTranslator struct {
	// переименования базовых активов: канонический -> нативный
	baseRenames map[string]string
	// обратная таблица: нативный -> канонический
	baseRestores map[string]string
	// подмена котируемой валюты: канонический -> нативный (USDT -> USD)
	quoteOverride map[string]string
	// обратная подмена котировки
	quoteRestore map[string]string
	// разделитель база/котировка в нативном виде ("" если нет)
	delimiter string
}

// NewSymbolTranslator создаёт транслятор с указанными таблицами.
// renames и quoteOverride могут быть nil для бирж без переименований.
func NewSymbolTranslator(delimiter string, renames, quoteOverride map[string]string) *SymbolTranslator {
	t := &SymbolTranslator{
		baseRenames:   make(map[string]string),
		baseRestores:  make(map[string]string),
		quoteOverride: make(map[string]string),
		quoteRestore:  make(map[string]string),
		delimiter:     delimiter,
	}
	for canonical, native := range renames {
		t.baseRenames[canonical] = native
		t.baseRestores[native] = canonical
	}
	for canonical, native := range quoteOverride {
		t.quoteOverride[canonical] = native
		t.quoteRestore[native] = canonical
	}
	return t
}

// SplitCanonical разбивает канонический символ на базу и котировку.
// Котировка определяется по списку известных валют (самый длинный суффикс первым).
// Если котировка не распознана, вся строка считается базой.
func SplitCanonical(symbol string) (base, quote string) {
	for _, q := range knownQuotes {
		if len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			return symbol[:len(symbol)-len(q)], q
		}
	}
	return symbol, ""
}

// ToNative преобразует канонический символ в нативный вид биржи
func (t *SymbolTranslator) ToNative(symbol string) string {
	base, quote := SplitCanonical(symbol)
	if quote == "" {
		return symbol
	}

	if renamed, ok := t.baseRenames[base]; ok {
		base = renamed
	}
	if substituted, ok := t.quoteOverride[quote]; ok {
		quote = substituted
	}

	return base + t.delimiter + quote
}

// ToCanonical преобразует нативный вид биржи обратно в канонический.
//
// Для бирж без разделителя обратное преобразование неоднозначно, поэтому
// сначала ищется самое длинное совпадение по таблицам (XBT до BT и т.п.),
// и только потом применяется наивное отрезание суффикса котировки.
func (t *SymbolTranslator) ToCanonical(native string) string {
	var base, quote string

	if t.delimiter != "" {
		parts := strings.SplitN(native, t.delimiter, 2)
		if len(parts) != 2 {
			return native
		}
		base, quote = parts[0], parts[1]
	} else {
		base, quote = t.splitNative(native)
		if quote == "" {
			return native
		}
	}

	if restored, ok := t.baseRestores[base]; ok {
		base = restored
	}
	if restored, ok := t.quoteRestore[quote]; ok {
		quote = restored
	}

	return base + quote
}

// splitNative разбивает нативный символ без разделителя на базу и котировку.
// Перебирает нативные котировки (с учётом подмены) от самой длинной к короткой.
func (t *SymbolTranslator) splitNative(native string) (base, quote string) {
	// Сначала нативные котировки из таблицы подмены: у Kraken USD длиннее
	// валидного суффикса нет, но прямой поиск по подменённым котировкам
	// разрешает неоднозначные префиксы раньше наивного отрезания
	for _, q := range knownQuotes {
		nq := q
		if substituted, ok := t.quoteOverride[q]; ok {
			nq = substituted
		}
		if len(native) > len(nq) && strings.HasSuffix(native, nq) {
			candidate := native[:len(native)-len(nq)]
			// Самое длинное совпадение по таблице переименований приоритетно
			if _, ok := t.baseRestores[candidate]; ok {
				return candidate, nq
			}
		}
	}

	// Fallback: наивное отрезание известного суффикса котировки
	for _, q := range knownQuotes {
		nq := q
		if substituted, ok := t.quoteOverride[q]; ok {
			nq = substituted
		}
		if len(native) > len(nq) && strings.HasSuffix(native, nq) {
			return native[:len(native)-len(nq)], nq
		}
	}

	return native, ""
}
