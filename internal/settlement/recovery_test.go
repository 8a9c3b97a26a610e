package settlement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/ledger"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/settlement"
	"casino-round-settlement/internal/storage"
)

func recoveryEngine(f *fixture, attempts int) *settlement.Engine {
	return settlement.NewEngine(games.CoinFlip, f.ledger, f.channel, f.store, settlement.Config{
		Timeout:  10 * time.Millisecond,
		Recovery: settlement.RecoveryPolicy{MaxAttempts: attempts},
	}, nil)
}

func TestRecoverNothingPending(t *testing.T) {
	f := newFixture(1000)

	rec, err := recoveryEngine(f, 0).Recover(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, f.log.snapshot())
}

func TestRecoverReplaysWin(t *testing.T) {
	f := newFixture(1000)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, games.CoinFlip.ID, models.PendingWin("round-1", 500)))

	rec, err := recoveryEngine(f, 0).Recover(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "round-1", rec.RoundID)

	assert.Equal(t, []int64{500}, f.ledger.winnings)
	assert.Equal(t, int64(1500), f.ledger.AvailableBalance())

	_, err = f.store.Load(ctx, games.CoinFlip.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecoverReplaysLoss(t *testing.T) {
	f := newFixture(1000)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, games.CoinFlip.ID, models.PendingLoss("round-2", 100)))

	_, err := recoveryEngine(f, 0).Recover(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.ledger.losses)
	assert.Empty(t, f.ledger.winnings)
	_, err = f.store.Load(ctx, games.CoinFlip.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecoverSingleShotDropsOnFailure(t *testing.T) {
	f := newFixture(1000)
	f.ledger.settleErr = errNetwork
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, games.CoinFlip.ID, models.PendingWin("", 500)))

	_, err := recoveryEngine(f, 0).Recover(ctx)
	require.ErrorIs(t, err, settlement.ErrRecoveryExhausted)
	require.ErrorIs(t, err, errNetwork)

	assert.Equal(t, []int64{500}, f.ledger.winnings, "exactly one replay attempt")
	_, err = f.store.Load(ctx, games.CoinFlip.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A second start has nothing left to replay.
	rec, err := recoveryEngine(f, 0).Recover(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Len(t, f.ledger.winnings, 1)
}

func TestRecoverKeepsRecordWithinBudget(t *testing.T) {
	f := newFixture(1000)
	f.ledger.settleErr = errNetwork
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, games.CoinFlip.ID, models.PendingWin("round-3", 200)))

	engine := recoveryEngine(f, 2)

	_, err := engine.Recover(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, settlement.ErrRecoveryExhausted)

	rec, err := f.store.Load(ctx, games.CoinFlip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)

	_, err = engine.Recover(ctx)
	require.ErrorIs(t, err, settlement.ErrRecoveryExhausted)

	_, err = f.store.Load(ctx, games.CoinFlip.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, []int64{200, 200}, f.ledger.winnings)
}

func TestRecoverTreatsSettledRoundAsDone(t *testing.T) {
	f := newFixture(1000)
	f.ledger.settleErr = fmt.Errorf("wallet: %w", ledger.ErrRoundSettled)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, games.CoinFlip.ID, models.PendingWin("round-4", 200)))

	_, err := recoveryEngine(f, 0).Recover(ctx)
	require.NoError(t, err)

	_, err = f.store.Load(ctx, games.CoinFlip.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestParkedResultIsRecoveredOnNextStart(t *testing.T) {
	f := newFixture(1000)
	f.ledger.settleErr = errNetwork
	f.channel.respond = answer("heads")
	ctx := context.Background()

	res, err := recoveryEngine(f, 0).Play(ctx, "heads", 100)
	require.NoError(t, err)
	require.True(t, res.Pending)

	f.ledger.mu.Lock()
	f.ledger.settleErr = nil
	f.ledger.mu.Unlock()

	rec, err := recoveryEngine(f, 0).Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RoundID, rec.RoundID)
	assert.Equal(t, []int64{200, 200}, f.ledger.winnings)
	assert.Equal(t, int64(1100), f.ledger.AvailableBalance())
}
