package models

import (
	"errors"
	"fmt"
)

var ErrInvalidPending = errors.New("pending result must carry exactly one of winAmount or lossAmount")

// PendingResult marks a round whose outcome is known but whose ledger write
// was never confirmed. Exactly one of WinAmount and LossAmount is set.
type PendingResult struct {
	RoundID    string `json:"roundId,omitempty"`
	WinAmount  *int64 `json:"winAmount,omitempty"`
	LossAmount *int64 `json:"lossAmount,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
}

func PendingWin(roundID string, amount int64) PendingResult {
	return PendingResult{RoundID: roundID, WinAmount: &amount}
}

func PendingLoss(roundID string, amount int64) PendingResult {
	return PendingResult{RoundID: roundID, LossAmount: &amount}
}

func (p PendingResult) IsWin() bool {
	return p.WinAmount != nil
}

func (p PendingResult) Validate() error {
	if (p.WinAmount == nil) == (p.LossAmount == nil) {
		return ErrInvalidPending
	}
	if p.WinAmount != nil && *p.WinAmount <= 0 {
		return fmt.Errorf("winAmount %d: %w", *p.WinAmount, ErrInvalidPending)
	}
	return nil
}

type VerificationData struct {
	ServerHash   string `json:"server_hash"`
	CurrentNonce int64  `json:"current_nonce"`
}

type VerifyRequest struct {
	GameID     string `json:"game_id" binding:"required"`
	ClientSeed string `json:"client_seed" binding:"required"`
	ServerSeed string `json:"server_seed" binding:"required"`
	Nonce      int64  `json:"nonce"`
}

type SettleRequest struct {
	RoundID string `json:"round_id" binding:"required"`
	Amount  int64  `json:"amount"`
}
