package websocket

import (
	"bytes"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"cryptosim/internal/models"
)

// Пул JSON буферов: убирает аллокации на каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// TickerLister отдаёт текущий срез рынка. Реализуется marketdata.TickerTable.
type TickerLister interface {
	List() []models.Ticker
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральный менеджер broadcast сообщений всем подключенным клиентам:
// периодические срезы цен, исполнения ордеров, алерты. Это серверная
// сторона relay: один процесс читает рынок, много UI клиентов получают
// копии без собственных соединений с биржами.
//
// Использование:
//  1. hub := NewHub()
//  2. go hub.Run()
//  3. hub.BroadcastOrderFill(trade) и т.д.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	// Счётчик сообщений, отброшенных при переполнении broadcast канала
	dropped atomic.Int64

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws-hub] client connected, total %d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws-hub] client disconnected, total %d", total)

		case message := <-h.broadcast:
			// Список клиентов копируется под коротким RLock, отправка идёт
			// без блокировки, чтобы не тормозить register/unregister
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - отключается
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				log.Printf("[ws-hub] removed %d slow clients, total %d", len(toRemove), total)
			}
		}
	}
}

// Stop останавливает главный цикл и отключает всех клиентов
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Broadcast сериализует и отправляет сообщение всем подключенным клиентам.
// Не блокируется: при переполнении канала сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		log.Printf("[ws-hub] failed to marshal broadcast message: %v", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msgCopy)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastOrderFill отправляет исполнение ордера
func (h *Hub) BroadcastOrderFill(trade *models.Trade) {
	h.Broadcast(NewOrderFillMessage(trade))
}

// BroadcastAlert отправляет срабатывание алерта
func (h *Hub) BroadcastAlert(alert *models.PriceAlert) {
	h.Broadcast(NewAlertMessage(alert))
}

// Notify отправляет текстовое уведомление. Реализует интерфейс Notifier
// движка симуляции: исполнения и алерты доходят до UI тем же путём,
// что и рыночные данные.
func (h *Hub) Notify(userID int, message string) {
	h.Broadcast(NewNotificationMessage(userID, message))
}

// StreamTickers периодически рассылает срез рынка всем клиентам.
// Блокируется до закрытия done; запускается горутиной из main.
func (h *Hub) StreamTickers(done <-chan struct{}, source TickerLister, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			tickers := source.List()
			if len(tickers) == 0 {
				continue
			}
			h.Broadcast(NewTickersMessage(tickers))
		}
	}
}

// DroppedMessages возвращает количество отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
