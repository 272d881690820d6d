package marketdata

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"cryptosim/internal/models"
)

// RelayState состояние источника рыночных данных
type RelayState int32

const (
	StateDisconnected RelayState = iota
	StateConnecting
	StateRelayConnected // данные идут через relay
	StateDegraded       // relay недоступен, данные через прямое подключение к бирже
)

func (s RelayState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRelayConnected:
		return "relay-connected"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// RelayConfig конфигурация источника рыночных данных
type RelayConfig struct {
	// RelayURL - endpoint relay, мультиплексирующего одно upstream
	// соединение на множество клиентов
	RelayURL string

	// UpstreamURL - прямое подключение к combined stream биржи (fallback)
	UpstreamURL string

	ConnectTimeout time.Duration

	// Фиксированные задержки переподключения: у прямого подключения короче,
	// чтобы fallback поднимался быстро; relay может чиниться дольше
	RelayRetryDelay  time.Duration
	DirectRetryDelay time.Duration

	// Health monitor: если соединение есть, но данных нет дольше
	// DataTimeout, оба транспорта принудительно переподключаются
	HealthInterval time.Duration
	DataTimeout    time.Duration
}

// DefaultRelayConfig возвращает конфигурацию по умолчанию
func DefaultRelayConfig(relayURL, upstreamURL string) RelayConfig {
	return RelayConfig{
		RelayURL:         relayURL,
		UpstreamURL:      upstreamURL,
		ConnectTimeout:   10 * time.Second,
		RelayRetryDelay:  10 * time.Second,
		DirectRetryDelay: 3 * time.Second,
		HealthInterval:   15 * time.Second,
		DataTimeout:      45 * time.Second,
	}
}

// Relay - машина состояний источника рыночных данных.
//
// Primary транспорт - relay endpoint. Fallback - прямое подключение к бирже,
// поднимается когда relay сообщает об отсутствии upstream, ошибается или
// молчит. Кадры с любого транспорта обновляют TickerTable last-write-wins,
// дубликаты при параллельной работе обоих транспортов безвредны.
//
// Таймеры переподключения принадлежат объекту и останавливаются в Stop:
// после завершения не остаётся ни висящих таймеров, ни горутин.
type Relay struct {
	config RelayConfig
	table  *TickerTable

	state int32 // atomic RelayState

	mu            sync.Mutex
	relayConn     *websocket.Conn
	directConn    *websocket.Conn
	relayPending  bool // dial уже идёт, дубликат не нужен
	directPending bool
	relayUpstream bool // relay подтвердил наличие upstream соединения
	relayTimer    *time.Timer
	directTimer   *time.Timer

	lastData int64 // atomic, unix nano последнего кадра данных

	ticks     chan models.Ticker
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewRelay создаёт источник рыночных данных поверх таблицы тикеров
func NewRelay(config RelayConfig, table *TickerTable) *Relay {
	return &Relay{
		config:    config,
		table:     table,
		ticks:     make(chan models.Ticker, 1000),
		closeChan: make(chan struct{}),
	}
}

// Start запускает подключение и health monitor
func (r *Relay) Start() {
	atomic.StoreInt64(&r.lastData, time.Now().UnixNano())
	r.setState(StateConnecting)
	go r.connectRelay()
	go r.healthLoop()
}

// Stop детерминированно гасит оба транспорта и все таймеры
func (r *Relay) Stop() {
	r.closeOnce.Do(func() {
		close(r.closeChan)

		r.mu.Lock()
		if r.relayTimer != nil {
			r.relayTimer.Stop()
			r.relayTimer = nil
		}
		if r.directTimer != nil {
			r.directTimer.Stop()
			r.directTimer = nil
		}
		if r.relayConn != nil {
			r.relayConn.Close()
			r.relayConn = nil
		}
		if r.directConn != nil {
			r.directConn.Close()
			r.directConn = nil
		}
		r.mu.Unlock()

		r.setState(StateDisconnected)
		log.Printf("[relay] stopped")
	})
}

// Ticks возвращает канал тиков для движка симуляции.
// При переполнении буфера тики отбрасываются: таблица всегда актуальна,
// а движок на следующем тике увидит свежую цену.
func (r *Relay) Ticks() <-chan models.Ticker {
	return r.ticks
}

// State возвращает текущее состояние источника
func (r *Relay) State() RelayState {
	return RelayState(atomic.LoadInt32(&r.state))
}

func (r *Relay) closed() bool {
	select {
	case <-r.closeChan:
		return true
	default:
		return false
	}
}

func (r *Relay) setState(s RelayState) {
	old := RelayState(atomic.SwapInt32(&r.state, int32(s)))
	if old != s {
		log.Printf("[relay] state: %s -> %s", old, s)
	}
}

// recomputeState выводит состояние из фактического набора соединений.
// Вызывается под mu.
func (r *Relay) recomputeState() {
	switch {
	case r.relayConn != nil && r.relayUpstream:
		r.setState(StateRelayConnected)
	case r.directConn != nil:
		r.setState(StateDegraded)
	case r.relayPending || r.directPending:
		r.setState(StateConnecting)
	case r.closed():
		r.setState(StateDisconnected)
	default:
		r.setState(StateConnecting)
	}
}

// connectRelay подключается к relay endpoint'у.
// Guard от дубликатов: при открытом или устанавливаемом соединении выходит сразу.
func (r *Relay) connectRelay() {
	r.mu.Lock()
	if r.closed() || r.relayConn != nil || r.relayPending {
		r.mu.Unlock()
		return
	}
	r.relayPending = true
	r.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: r.config.ConnectTimeout}
	conn, _, err := dialer.Dial(r.config.RelayURL, nil)

	r.mu.Lock()
	r.relayPending = false
	if r.closed() {
		r.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		r.recomputeState()
		r.scheduleRelayReconnectLocked()
		r.mu.Unlock()
		log.Printf("[relay] relay dial failed: %v, falling back to direct", err)
		// Relay недоступен: поднимаем прямое подключение не дожидаясь retry
		go r.connectDirect()
		return
	}

	r.relayConn = conn
	// До status кадра считаем upstream живым: relay шлёт status сразу после connect
	r.relayUpstream = true
	r.recomputeState()
	r.mu.Unlock()

	log.Printf("[relay] connected to relay %s", r.config.RelayURL)
	go r.readRelay(conn)
}

// connectDirect поднимает прямое подключение к combined stream биржи
func (r *Relay) connectDirect() {
	r.mu.Lock()
	if r.closed() || r.directConn != nil || r.directPending {
		r.mu.Unlock()
		return
	}
	r.directPending = true
	r.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: r.config.ConnectTimeout}
	conn, _, err := dialer.Dial(r.config.UpstreamURL, nil)

	r.mu.Lock()
	r.directPending = false
	if r.closed() {
		r.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		r.recomputeState()
		r.scheduleDirectReconnectLocked()
		r.mu.Unlock()
		log.Printf("[relay] direct dial failed: %v", err)
		return
	}

	r.directConn = conn
	r.recomputeState()
	r.mu.Unlock()

	log.Printf("[relay] direct upstream connected %s", r.config.UpstreamURL)
	go r.readDirect(conn)
}

// readRelay читает кадры relay: status управляет fallback'ом, ticker - данные
func (r *Relay) readRelay(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			r.handleRelayDisconnect(err)
			return
		}

		frameType, ticker, upstream, parseErr := parseRelayFrame(raw)
		if parseErr != nil {
			log.Printf("[relay] bad relay frame: %v", parseErr)
			continue
		}

		switch frameType {
		case frameStatus:
			r.mu.Lock()
			r.relayUpstream = upstream
			r.recomputeState()
			r.mu.Unlock()
			if !upstream {
				// Relay жив, но без upstream: данные берём напрямую
				log.Printf("[relay] relay has no upstream, opening direct connection")
				go r.connectDirect()
			}
		case frameTicker:
			r.publish(ticker)
		}
	}
}

// readDirect читает кадры прямого подключения к бирже
func (r *Relay) readDirect(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			r.handleDirectDisconnect(err)
			return
		}

		if ticker, ok := parseUpstreamFrame(raw); ok {
			r.publish(ticker)
		}
	}
}

// publish обновляет таблицу и отдаёт тик движку симуляции
func (r *Relay) publish(ticker models.Ticker) {
	atomic.StoreInt64(&r.lastData, time.Now().UnixNano())
	r.table.Set(ticker)

	select {
	case r.ticks <- ticker:
	default:
		// Буфер полон: тик отброшен, таблица уже содержит свежую цену
	}
}

func (r *Relay) handleRelayDisconnect(err error) {
	r.mu.Lock()
	r.relayConn = nil
	r.relayUpstream = false
	if r.closed() {
		r.mu.Unlock()
		return
	}
	r.recomputeState()
	r.scheduleRelayReconnectLocked()
	r.mu.Unlock()

	log.Printf("[relay] relay connection lost: %v", err)
	go r.connectDirect()
}

func (r *Relay) handleDirectDisconnect(err error) {
	r.mu.Lock()
	r.directConn = nil
	if r.closed() {
		r.mu.Unlock()
		return
	}
	r.recomputeState()
	r.scheduleDirectReconnectLocked()
	r.mu.Unlock()

	log.Printf("[relay] direct connection lost: %v", err)
}

// scheduleRelayReconnectLocked взводит таймер переподключения relay.
// Вызывается под mu; повторный вызов при взведённом таймере - no-op.
func (r *Relay) scheduleRelayReconnectLocked() {
	if r.relayTimer != nil {
		return
	}
	r.relayTimer = time.AfterFunc(r.config.RelayRetryDelay, func() {
		r.mu.Lock()
		r.relayTimer = nil
		r.mu.Unlock()
		r.connectRelay()
	})
}

func (r *Relay) scheduleDirectReconnectLocked() {
	if r.directTimer != nil {
		return
	}
	r.directTimer = time.AfterFunc(r.config.DirectRetryDelay, func() {
		r.mu.Lock()
		r.directTimer = nil
		r.mu.Unlock()
		r.connectDirect()
	})
}

// healthLoop следит за потоком данных: соединение есть, данных нет - reconnect
func (r *Relay) healthLoop() {
	ticker := time.NewTicker(r.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closeChan:
			return
		case <-ticker.C:
			state := r.State()
			if state != StateRelayConnected && state != StateDegraded {
				continue
			}
			last := time.Unix(0, atomic.LoadInt64(&r.lastData))
			if time.Since(last) < r.config.DataTimeout {
				continue
			}
			log.Printf("[relay] no data for %s, forcing reconnect", time.Since(last).Round(time.Second))
			r.forceReconnect()
		}
	}
}

// forceReconnect рвёт оба транспорта: read pump'ы увидят ошибку чтения
// и запустят штатное переподключение со своими задержками
func (r *Relay) forceReconnect() {
	atomic.StoreInt64(&r.lastData, time.Now().UnixNano())

	r.mu.Lock()
	if r.relayConn != nil {
		r.relayConn.Close()
	}
	if r.directConn != nil {
		r.directConn.Close()
	}
	r.mu.Unlock()
}
