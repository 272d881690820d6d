package websocket

import (
	"time"

	"cryptosim/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTickers - срез текущих цен по всем символам.
	// Отправляется периодически всем подключенным клиентам.
	MessageTypeTickers MessageType = "tickers"

	// MessageTypeOrderFill - исполнение симулируемого ордера
	MessageTypeOrderFill MessageType = "orderFill"

	// MessageTypeAlert - срабатывание ценового алерта
	MessageTypeAlert MessageType = "alert"

	// MessageTypeNotification - произвольное текстовое уведомление
	MessageTypeNotification MessageType = "notification"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TickersMessage - сообщение со срезом рынка.
// Клиент получает полный снимок и сам выбирает нужные символы:
// дифференциальные обновления не оправдывают сложности при
// типичных размерах среза (десятки символов).
type TickersMessage struct {
	BaseMessage
	Data []models.Ticker `json:"data"`
}

// OrderFillMessage - сообщение об исполнении ордера
type OrderFillMessage struct {
	BaseMessage
	Data *models.Trade `json:"data"`
}

// AlertMessage - сообщение о срабатывании ценового алерта
type AlertMessage struct {
	BaseMessage
	Data *models.PriceAlert `json:"data"`
}

// NotificationMessage - текстовое уведомление пользователю
type NotificationMessage struct {
	BaseMessage
	UserID  int    `json:"user_id"`
	Message string `json:"message"`
}

// NewTickersMessage создает сообщение со срезом рынка
func NewTickersMessage(tickers []models.Ticker) *TickersMessage {
	return &TickersMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTickers, Timestamp: time.Now()},
		Data:        tickers,
	}
}

// NewOrderFillMessage создает сообщение об исполнении ордера
func NewOrderFillMessage(trade *models.Trade) *OrderFillMessage {
	return &OrderFillMessage{
		BaseMessage: BaseMessage{Type: MessageTypeOrderFill, Timestamp: time.Now()},
		Data:        trade,
	}
}

// NewAlertMessage создает сообщение о срабатывании алерта
func NewAlertMessage(alert *models.PriceAlert) *AlertMessage {
	return &AlertMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAlert, Timestamp: time.Now()},
		Data:        alert,
	}
}

// NewNotificationMessage создает текстовое уведомление
func NewNotificationMessage(userID int, message string) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNotification, Timestamp: time.Now()},
		UserID:      userID,
		Message:     message,
	}
}
