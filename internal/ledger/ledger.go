// Package ledger is the client side of the wallet: the single source of truth
// for funds lives on the backend, this package mirrors it.
package ledger

import (
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRoundSettled        = errors.New("round already settled")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
)

// Balance separates the last confirmed figure from optimistic debits that are
// still in flight, so a failed call rolls back exactly its own delta.
type Balance struct {
	Confirmed    int64 `json:"confirmed"`
	PendingDelta int64 `json:"pending_delta"`
}

func (b Balance) Available() int64 {
	return b.Confirmed + b.PendingDelta
}
