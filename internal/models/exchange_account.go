package models

import "time"

// ExchangeAccount представляет привязанный аккаунт реальной биржи с API ключами.
// Используется при зеркалировании симулируемых ордеров на живой счёт.
type ExchangeAccount struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	Exchange   string    `json:"exchange" db:"exchange"`   // binance, kraken, kucoin
	APIKey     string    `json:"-" db:"api_key"`           // зашифрован, не возвращается в JSON
	APISecret  string    `json:"-" db:"api_secret"`        // зашифрован
	Passphrase string    `json:"-" db:"passphrase"`        // для KuCoin, зашифрован
	Platform   string    `json:"platform" db:"platform"`   // выбранный региональный endpoint (для binance)
	Mirroring  bool      `json:"mirroring" db:"mirroring"` // зеркалировать ли ордера на живой счёт
	LastError  string    `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
