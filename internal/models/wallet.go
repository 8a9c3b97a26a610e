package models

// DefaultBalance is credited to a wallet on first access: $100.00 in cents.
const DefaultBalance int64 = 10000

type Wallet struct {
	UserID        int64 `json:"user_id" redis:"-"`
	Balance       int64 `json:"balance" redis:"balance"`
	LockedBalance int64 `json:"locked_balance" redis:"locked_balance"`
	TotalWagered  int64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon      int64 `json:"total_won" redis:"total_won"`
	Nonce         int64 `json:"nonce" redis:"nonce"`
}

type BalanceResponse struct {
	Balance       int64 `json:"balance"`
	LockedBalance int64 `json:"locked_balance"`
	TotalWagered  int64 `json:"total_wagered"`
	TotalWon      int64 `json:"total_won"`
	Available     int64 `json:"available"`
}

func (w *Wallet) Response() BalanceResponse {
	return BalanceResponse{
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		TotalWagered:  w.TotalWagered,
		TotalWon:      w.TotalWon,
		Available:     w.Balance,
	}
}
