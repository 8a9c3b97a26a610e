// Package games holds the mini-game catalog shared by the settlement engine
// and the outcome authority: outcome domain, payout multiplier and the socket
// event names of each game.
package games

import (
	"errors"
	"fmt"
	"strconv"

	"casino-round-settlement/internal/models"
)

var ErrUnknownGame = errors.New("unknown game")

type Game struct {
	ID       string
	Outcomes []models.Outcome
	// Multiplier is the gross payout factor on a win, stake included.
	Multiplier  int64
	PlayEvent   string
	ResultEvent string
	// Numeric games report their outcome as an integer "roll".
	Numeric bool
}

var (
	CoinFlip = Game{
		ID:          "coin-flip",
		Outcomes:    []models.Outcome{"heads", "tails"},
		Multiplier:  2,
		PlayEvent:   "coinflip:placeBet",
		ResultEvent: "coinflip:result",
	}

	Dice = Game{
		ID:          "dice-classic",
		Outcomes:    []models.Outcome{"1", "2", "3", "4", "5", "6"},
		Multiplier:  5,
		PlayEvent:   "dice:play",
		ResultEvent: "dice:result",
		Numeric:     true,
	}
)

var catalog = map[string]Game{
	CoinFlip.ID: CoinFlip,
	Dice.ID:     Dice,
}

func Lookup(id string) (Game, error) {
	g, ok := catalog[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	return g, nil
}

// ByEvent resolves a game from either of its socket event names.
func ByEvent(event string) (Game, bool) {
	for _, g := range catalog {
		if g.PlayEvent == event || g.ResultEvent == event {
			return g, true
		}
	}
	return Game{}, false
}

func (g Game) Contains(o models.Outcome) bool {
	return g.Index(o) >= 0
}

func (g Game) Index(o models.Outcome) int {
	for i, v := range g.Outcomes {
		if v == o {
			return i
		}
	}
	return -1
}

// IsWin is exact equality against the domain; there are no near-miss tiers.
func (g Game) IsWin(outcome, choice models.Outcome) bool {
	return g.Contains(outcome) && outcome == choice
}

// Payout returns the gross amount credited for a round, 0 on a loss.
func (g Game) Payout(outcome, choice models.Outcome, bet int64) int64 {
	if !g.IsWin(outcome, choice) {
		return 0
	}
	return bet * g.Multiplier
}

// Result builds the wire result for an outcome index.
func (g Game) Result(index int, choice models.Outcome) models.RoundResult {
	outcome := g.Outcomes[index]
	win := g.IsWin(outcome, choice)
	res := models.RoundResult{GameID: g.ID, Win: &win}
	if g.Numeric {
		roll, _ := strconv.Atoi(string(outcome))
		res.Roll = &roll
	} else {
		res.Outcome = outcome
	}
	return res
}
