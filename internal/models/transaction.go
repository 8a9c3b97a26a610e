package models

import "time"

type TransactionType string

const (
	TransactionTypeBet  TransactionType = "bet"
	TransactionTypeWin  TransactionType = "win"
	TransactionTypeLoss TransactionType = "loss"
)

type Transaction struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	RoundID      string          `json:"round_id"`
	GameID       string          `json:"game_id"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}
