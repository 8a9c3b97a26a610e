// Package settlement runs casino rounds end to end: debit the stake, obtain
// an outcome from the authority or the local fallback, and apply the result
// to the ledger exactly once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/rng"
	"casino-round-settlement/internal/storage"
)

const DefaultTimeout = 1500 * time.Millisecond

var (
	ErrRoundInProgress     = errors.New("round already in progress")
	ErrInvalidBet          = errors.New("bet amount must be positive")
	ErrInvalidChoice       = errors.New("choice is not a valid outcome")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBetRejected         = errors.New("bet rejected by ledger")
)

// Ledger is the wallet collaborator. It owns the balance; the engine only
// reads it for the affordability check.
type Ledger interface {
	PlaceBet(ctx context.Context, stake models.Stake) error
	AddWinnings(ctx context.Context, roundID string, amount int64) error
	MarkLoss(ctx context.Context, roundID string) error
	AvailableBalance() int64
}

// OutcomeChannel is the optional authority. Subscribe returns the disposal
// func of a one-shot subscription.
type OutcomeChannel interface {
	IsConnected() bool
	SubmitRound(event string, req models.RoundRequest)
	Subscribe(gameID, clientSeed string, fn func(models.RoundResult)) func()
}

type Config struct {
	PlayerID int64
	Currency string
	// Timeout bounds the wait for the authority before the local fallback
	// decides the round.
	Timeout  time.Duration
	Recovery RecoveryPolicy
	Random   *rng.Source
}

type Engine struct {
	game    games.Game
	ledger  Ledger
	channel OutcomeChannel
	pending storage.PendingStore
	random  *rng.Source
	cfg     Config
	logger  *slog.Logger

	state atomic.Int32
}

// NewEngine builds an engine for one game. channel may be nil.
func NewEngine(game games.Game, ledger Ledger, channel OutcomeChannel, pending storage.PendingStore, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Random == nil {
		cfg.Random = rng.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Engine{
		game:    game,
		ledger:  ledger,
		channel: channel,
		pending: pending,
		random:  cfg.Random,
		cfg:     cfg,
		logger:  logger.With("game_id", game.ID),
	}
}

func (e *Engine) Game() games.Game {
	return e.game
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Busy reports whether a round is between bet placement and settlement.
// The play control stays disabled while it is true.
func (e *Engine) Busy() bool {
	return e.State() != Idle
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Play runs one round. Affordability and placement failures return an error
// and leave the balance untouched; once the stake is debited the round always
// settles, and a failed ledger write is parked as a pending result instead of
// failing the call.
func (e *Engine) Play(ctx context.Context, choice models.Outcome, bet int64) (*Result, error) {
	if !e.game.Contains(choice) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	if available := e.ledger.AvailableBalance(); bet > available {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, available, bet)
	}

	if !e.state.CompareAndSwap(int32(Idle), int32(BetPlaced)) {
		return nil, ErrRoundInProgress
	}
	defer e.setState(Idle)

	r := newRound(models.GenerateRoundID(), choice, bet)
	log := e.logger.With("round_id", r.id)

	err := e.ledger.PlaceBet(ctx, models.Stake{RoundID: r.id, GameID: e.game.ID, Amount: bet})
	if err != nil {
		log.Warn("bet rejected", "amount", bet, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrBetRejected, err)
	}

	r.seed = e.clientSeed()
	e.setState(AwaitingOutcome)

	release := e.awaitOutcome(r)
	decided := <-r.done
	release()

	e.setState(Settling)

	res := &Result{
		RoundID:    r.id,
		GameID:     e.game.ID,
		Choice:     choice,
		Bet:        bet,
		Outcome:    decided.outcome,
		Source:     decided.source,
		ClientSeed: r.seed,
		WinAmount:  e.game.Payout(decided.outcome, choice, bet),
	}
	res.Win = res.WinAmount > 0

	if err := e.apply(ctx, res); err != nil {
		log.Warn("settlement write failed, parking pending result", "error", err)
		e.park(ctx, res)
		res.Pending = true
	}

	log.Info("round settled",
		"outcome", res.Outcome,
		"source", res.Source,
		"win", res.Win,
		"win_amount", res.WinAmount,
		"pending", res.Pending,
	)
	return res, nil
}

// awaitOutcome arms both triggers for the round: the authority subscription
// when the channel is up, and the fallback timer always. The returned func
// releases both.
func (e *Engine) awaitOutcome(r *round) func() {
	unsubscribe := func() {}

	if e.channel != nil && e.channel.IsConnected() {
		unsubscribe = e.channel.Subscribe(e.game.ID, r.seed, func(res models.RoundResult) {
			outcome := res.Value()
			if !e.game.Contains(outcome) {
				e.logger.Warn("authority sent an outcome outside the domain", "round_id", r.id, "outcome", outcome)
				return
			}
			r.claim(outcome, SourceAuthority)
		})

		e.channel.SubmitRound(e.game.PlayEvent, models.RoundRequest{
			UserID:     e.cfg.PlayerID,
			Amount:     r.bet,
			Currency:   e.cfg.Currency,
			Choice:     r.choice,
			GameID:     e.game.ID,
			ClientSeed: r.seed,
			RoundID:    r.id,
		})
	}

	timer := time.AfterFunc(e.cfg.Timeout, func() {
		r.claim(rng.Pick(e.random, e.game.Outcomes), SourceLocal)
	})

	return func() {
		timer.Stop()
		unsubscribe()
	}
}

func (e *Engine) apply(ctx context.Context, res *Result) error {
	if res.Win {
		return e.ledger.AddWinnings(ctx, res.RoundID, res.WinAmount)
	}
	return e.ledger.MarkLoss(ctx, res.RoundID)
}

func (e *Engine) park(ctx context.Context, res *Result) {
	rec := models.PendingLoss(res.RoundID, res.Bet)
	if res.Win {
		rec = models.PendingWin(res.RoundID, res.WinAmount)
	}

	// The caller may already be gone; the record must still land.
	ctx = context.WithoutCancel(ctx)

	if prev, err := e.pending.Load(ctx, e.game.ID); err == nil {
		e.logger.Warn("replacing unrecovered pending result", "previous_round_id", prev.RoundID)
	}

	if err := e.pending.Save(ctx, e.game.ID, rec); err != nil {
		e.logger.Error("failed to persist pending result", "round_id", res.RoundID, "error", err)
	}
}

func (e *Engine) clientSeed() string {
	seed, err := models.GenerateClientSeed()
	if err == nil {
		return seed
	}

	e.logger.Warn("client seed from weak source", "error", err)
	return fmt.Sprintf("%08x%08x%08x%08x",
		e.random.Uint32(), e.random.Uint32(), e.random.Uint32(), e.random.Uint32())
}
