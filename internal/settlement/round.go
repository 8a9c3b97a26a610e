package settlement

import (
	"sync/atomic"

	"casino-round-settlement/internal/models"
)

type State int32

const (
	Idle State = iota
	BetPlaced
	AwaitingOutcome
	Settling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BetPlaced:
		return "bet_placed"
	case AwaitingOutcome:
		return "awaiting_outcome"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

type Source string

const (
	SourceAuthority Source = "authority"
	SourceLocal     Source = "local"
)

type Result struct {
	RoundID    string         `json:"round_id"`
	GameID     string         `json:"game_id"`
	Choice     models.Outcome `json:"choice"`
	Bet        int64          `json:"bet"`
	Outcome    models.Outcome `json:"outcome"`
	Source     Source         `json:"source"`
	Win        bool           `json:"win"`
	WinAmount  int64          `json:"win_amount"`
	ClientSeed string         `json:"client_seed"`
	// Pending is set when the ledger write failed and the result was parked
	// for recovery.
	Pending bool `json:"pending"`
}

type decision struct {
	outcome models.Outcome
	source  Source
}

type round struct {
	id     string
	seed   string
	choice models.Outcome
	bet    int64

	// ticket is consumed by whichever trigger decides the round first.
	ticket atomic.Bool
	done   chan decision
}

func newRound(id string, choice models.Outcome, bet int64) *round {
	return &round{
		id:     id,
		choice: choice,
		bet:    bet,
		done:   make(chan decision, 1),
	}
}

// claim reports whether this call decided the round; later calls are no-ops.
func (r *round) claim(outcome models.Outcome, source Source) bool {
	if !r.ticket.CompareAndSwap(false, true) {
		return false
	}
	r.done <- decision{outcome: outcome, source: source}
	return true
}
