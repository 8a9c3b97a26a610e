package services

import "casino-round-settlement/internal/models"

// BalanceNotifier pushes wallet changes to the user's live connections.
type BalanceNotifier interface {
	NotifyBalance(userID int64, balance models.BalanceResponse)
}
