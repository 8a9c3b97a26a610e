package settlement

import (
	"context"
	"errors"
	"fmt"

	"casino-round-settlement/internal/ledger"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/storage"
)

var ErrRecoveryExhausted = errors.New("pending result dropped after exhausting retry budget")

// RecoveryPolicy bounds how many starts may try to replay one pending
// result. MaxAttempts of 1 (the default) drops the record after a single
// failed replay.
type RecoveryPolicy struct {
	MaxAttempts int
}

func (p RecoveryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Recover replays the pending result of this game, if any. It is meant to run
// once when the game starts. A replay the ledger reports as already settled
// counts as success. When the budget runs out the record is deleted and the
// returned error wraps ErrRecoveryExhausted; with budget left the record is
// kept with its attempt count raised.
func (e *Engine) Recover(ctx context.Context) (*models.PendingResult, error) {
	rec, err := e.pending.Load(ctx, e.game.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending result: %w", err)
	}

	log := e.logger.With("round_id", rec.RoundID, "attempt", rec.Attempts+1)

	replayErr := e.replay(ctx, rec)
	if replayErr == nil || errors.Is(replayErr, ledger.ErrRoundSettled) {
		if err := e.pending.Delete(ctx, e.game.ID); err != nil {
			return rec, fmt.Errorf("delete recovered result: %w", err)
		}
		log.Info("pending result recovered", "win", rec.IsWin())
		return rec, nil
	}

	rec.Attempts++
	if rec.Attempts >= e.cfg.Recovery.maxAttempts() {
		if err := e.pending.Delete(ctx, e.game.ID); err != nil {
			log.Error("failed to drop exhausted pending result", "error", err)
		}
		log.Error("pending result dropped", "error", replayErr)
		return rec, fmt.Errorf("%w (%d attempts): %w", ErrRecoveryExhausted, rec.Attempts, replayErr)
	}

	if err := e.pending.Save(ctx, e.game.ID, *rec); err != nil {
		return rec, fmt.Errorf("keep pending result: %w", err)
	}
	log.Warn("pending result replay failed, will retry on next start", "error", replayErr)
	return rec, fmt.Errorf("replay pending result: %w", replayErr)
}

func (e *Engine) replay(ctx context.Context, rec *models.PendingResult) error {
	if rec.IsWin() {
		return e.ledger.AddWinnings(ctx, rec.RoundID, *rec.WinAmount)
	}
	return e.ledger.MarkLoss(ctx, rec.RoundID)
}
