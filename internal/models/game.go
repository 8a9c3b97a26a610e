package models

import (
	"encoding/json"
	"strconv"
)

// Outcome is one member of a game's finite outcome domain ("heads", "4").
type Outcome string

// Stake is the debit that opens a round on the ledger.
type Stake struct {
	RoundID string `json:"round_id" binding:"required"`
	GameID  string `json:"game_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

// RoundRequest is the outbound "<game>:play" payload.
type RoundRequest struct {
	UserID     int64   `json:"userId"`
	Amount     int64   `json:"amount"`
	Currency   string  `json:"currency"`
	Choice     Outcome `json:"choice"`
	GameID     string  `json:"gameId"`
	ClientSeed string  `json:"clientSeed"`
	RoundID    string  `json:"roundId,omitempty"`
}

// RoundResult is the inbound "<game>:result" payload. Coin flip style games
// fill Outcome, dice style games fill Roll.
type RoundResult struct {
	GameID         string  `json:"gameId"`
	Outcome        Outcome `json:"outcome,omitempty"`
	Roll           *int    `json:"roll,omitempty"`
	Win            *bool   `json:"win,omitempty"`
	ClientSeed     string  `json:"clientSeed,omitempty"`
	Nonce          int64   `json:"nonce,omitempty"`
	ServerSeedHash string  `json:"serverSeedHash,omitempty"`
}

// Value returns the outcome regardless of which field carried it.
func (r RoundResult) Value() Outcome {
	if r.Outcome != "" {
		return r.Outcome
	}
	if r.Roll != nil {
		return Outcome(strconv.Itoa(*r.Roll))
	}
	return ""
}

// Envelope is a single socket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}
