package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/models"
)

// OutcomeAuthority resolves rounds provably fairly. The outcome index is
// HMAC-SHA256(serverSeed, "gameId:clientSeed:nonce"), first four bytes
// big-endian, modulo the domain size. Only the seed hash is published until
// the seed is rotated.
type OutcomeAuthority struct {
	mu         sync.RWMutex
	serverSeed string
	serverHash string
}

// NewOutcomeAuthority uses seed, or a fresh random seed when it is empty.
func NewOutcomeAuthority(seed string) (*OutcomeAuthority, error) {
	a := &OutcomeAuthority{}
	if seed == "" {
		var err error
		if seed, err = generateServerSeed(); err != nil {
			return nil, err
		}
	}
	a.setSeed(seed)
	return a, nil
}

func generateServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashServerSeed is the commitment published before a seed is revealed.
func HashServerSeed(seed string) string {
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])
}

func (a *OutcomeAuthority) setSeed(seed string) {
	a.serverSeed = seed
	a.serverHash = HashServerSeed(seed)
}

func (a *OutcomeAuthority) ServerHash() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.serverHash
}

// RotateServerSeed installs a new seed and reveals the previous one so past
// rounds can be verified.
func (a *OutcomeAuthority) RotateServerSeed() (string, error) {
	next, err := generateServerSeed()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	revealed := a.serverSeed
	a.setSeed(next)
	return revealed, nil
}

// Resolve decides a round for choice. The result carries the seed hash the
// outcome was computed under.
func (a *OutcomeAuthority) Resolve(game games.Game, clientSeed string, nonce int64, choice models.Outcome) models.RoundResult {
	a.mu.RLock()
	seed, hash := a.serverSeed, a.serverHash
	a.mu.RUnlock()

	index, _ := outcomeIndex(seed, game, clientSeed, nonce)

	res := game.Result(index, choice)
	res.ClientSeed = clientSeed
	res.Nonce = nonce
	res.ServerSeedHash = hash
	return res
}

// VerifyOutcome recomputes an outcome from a revealed seed.
func VerifyOutcome(game games.Game, serverSeed, clientSeed string, nonce int64) (models.Outcome, string) {
	index, digest := outcomeIndex(serverSeed, game, clientSeed, nonce)
	return game.Outcomes[index], digest
}

func outcomeIndex(serverSeed string, game games.Game, clientSeed string, nonce int64) (int, string) {
	message := fmt.Sprintf("%s:%s:%d", game.ID, clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	sum := h.Sum(nil)

	n := binary.BigEndian.Uint32(sum[:4])
	return int(n % uint32(len(game.Outcomes))), hex.EncodeToString(sum)
}
