package exchange

import (
	"context"
	"log"
	"sync"
)

// platform.go - автоопределение регионального endpoint'а биржи
//
// Семейство Binance выставляет несколько региональных баз (глобальная
// binance.com и binance.us) под одинаковой формой ключей. Ключи работают
// только на одной из них, а со "своей" базы другая отвечает либо 401, либо
// гео-блокировкой. Детектор пробует все базы конкурентно и выбирает рабочую.

// probeResult классифицирует результат пробы одной базы
type probeResult int

const (
	probeFailed probeResult = iota
	probeOKNoFunds
	probeOKWithFunds
)

// ProbeFunc пробует базу с указанными ключами.
// Возвращает классификацию и ошибку пробы (для probeFailed).
type ProbeFunc func(ctx context.Context, base string, creds Credentials) (probeResult, error)

// PlatformDetector выбирает региональную базу под ключи и кэширует выбор.
//
// Кэш живёт в пределах процесса и ключуется по API ключу. При замене ключей
// пользователем сервисный слой обязан вызвать Invalidate.
type PlatformDetector struct {
	bases []string // порядок важен: bases[0] - primary, используется как fallback
	probe ProbeFunc

	cache   map[string]string // apiKey -> выбранная база
	cacheMu sync.RWMutex
}

// NewPlatformDetector создаёт детектор для списка региональных баз
func NewPlatformDetector(bases []string, probe ProbeFunc) *PlatformDetector {
	return &PlatformDetector{
		bases: bases,
		probe: probe,
		cache: make(map[string]string),
	}
}

// Detect возвращает рабочую базу для ключей.
//
// Правила выбора:
// 1. База с ненулевыми средствами выигрывает.
// 2. Иначе любая база, прошедшая аутентификацию.
// 3. Иначе primary база и самая информативная ошибка: гео-блокировка
//    приоритетнее невалидных ключей, так как подсказывает смену региона.
func (d *PlatformDetector) Detect(ctx context.Context, creds Credentials) (string, error) {
	// Проверяем кэш
	d.cacheMu.RLock()
	base, ok := d.cache[creds.APIKey]
	d.cacheMu.RUnlock()
	if ok {
		return base, nil
	}

	type outcome struct {
		base   string
		result probeResult
		err    error
	}

	// Конкурентные пробы всех баз. Общий контекст с таймаутом: проигравшая
	// база не держит in-flight запрос после завершения выбора.
	probeCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	results := make(chan outcome, len(d.bases))
	var wg sync.WaitGroup
	for _, b := range d.bases {
		wg.Add(1)
		go func(b string) {
			defer wg.Done()
			res, err := d.probe(probeCtx, b, creds)
			results <- outcome{base: b, result: res, err: err}
		}(b)
	}
	wg.Wait()
	close(results)

	outcomes := make(map[string]outcome, len(d.bases))
	for o := range results {
		outcomes[o.base] = o
	}

	// 1. База со средствами
	for _, b := range d.bases {
		if o, ok := outcomes[b]; ok && o.result == probeOKWithFunds {
			d.remember(creds.APIKey, b)
			return b, nil
		}
	}

	// 2. Любая аутентифицированная база
	for _, b := range d.bases {
		if o, ok := outcomes[b]; ok && o.result == probeOKNoFunds {
			d.remember(creds.APIKey, b)
			return b, nil
		}
	}

	// 3. Ни одна не прошла: primary база и самая информативная причина
	var bestErr error
	for _, b := range d.bases {
		o := outcomes[b]
		if o.err == nil {
			continue
		}
		if bestErr == nil || (IsGeoRestricted(o.err) && !IsGeoRestricted(bestErr)) {
			bestErr = o.err
		}
	}

	log.Printf("[platform] all bases failed for key %s...: %v", shortKey(creds.APIKey), bestErr)
	return d.bases[0], bestErr
}

// Invalidate сбрасывает кэш для ключа. Вызывается при замене ключей.
func (d *PlatformDetector) Invalidate(apiKey string) {
	d.cacheMu.Lock()
	delete(d.cache, apiKey)
	d.cacheMu.Unlock()
}

func (d *PlatformDetector) remember(apiKey, base string) {
	d.cacheMu.Lock()
	d.cache[apiKey] = base
	d.cacheMu.Unlock()
	log.Printf("[platform] selected base %s for key %s...", base, shortKey(apiKey))
}

// shortKey обрезает API ключ для безопасного логирования
func shortKey(apiKey string) string {
	if len(apiKey) <= 6 {
		return "***"
	}
	return apiKey[:6]
}
