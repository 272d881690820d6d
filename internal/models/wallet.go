package models

import "time"

// Wallet представляет баланс пользователя в одной валюте.
// Все симулируемые сделки списывают и зачисляют средства через эту сущность.
type Wallet struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Currency  string    `json:"currency" db:"currency"`
	Balance   float64   `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
