package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/services"
)

func TestResolveIsVerifiable(t *testing.T) {
	const seed = "0f1e2d3c4b5a69788796a5b4c3d2e1f0"

	authority, err := services.NewOutcomeAuthority(seed)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(seed))
	assert.Equal(t, hex.EncodeToString(sum[:]), authority.ServerHash())

	for nonce := int64(0); nonce < 20; nonce++ {
		for _, game := range []games.Game{games.CoinFlip, games.Dice} {
			res := authority.Resolve(game, "client-seed", nonce, game.Outcomes[0])

			assert.Equal(t, game.ID, res.GameID)
			assert.Equal(t, nonce, res.Nonce)
			assert.Equal(t, "client-seed", res.ClientSeed)
			assert.Equal(t, authority.ServerHash(), res.ServerSeedHash)
			require.True(t, game.Contains(res.Value()))

			outcome, _ := services.VerifyOutcome(game, seed, "client-seed", nonce)
			assert.Equal(t, outcome, res.Value())
		}
	}
}

func TestVerifyOutcomeFormula(t *testing.T) {
	h := hmac.New(sha256.New, []byte("seed"))
	h.Write([]byte("dice-classic:abc:7"))
	sum := h.Sum(nil)
	want := games.Dice.Outcomes[binary.BigEndian.Uint32(sum[:4])%6]

	outcome, digest := services.VerifyOutcome(games.Dice, "seed", "abc", 7)
	assert.Equal(t, want, outcome)
	assert.Equal(t, hex.EncodeToString(sum), digest)
}

func TestRotateServerSeedRevealsPrevious(t *testing.T) {
	authority, err := services.NewOutcomeAuthority("")
	require.NoError(t, err)

	before := authority.ServerHash()
	res := authority.Resolve(games.CoinFlip, "s", 1, "heads")

	revealed, err := authority.RotateServerSeed()
	require.NoError(t, err)
	assert.NotEqual(t, before, authority.ServerHash())

	sum := sha256.Sum256([]byte(revealed))
	assert.Equal(t, before, hex.EncodeToString(sum[:]))

	outcome, _ := services.VerifyOutcome(games.CoinFlip, revealed, "s", 1)
	assert.Equal(t, res.Value(), outcome)
}

func TestResolveReportsWin(t *testing.T) {
	authority, err := services.NewOutcomeAuthority("fixed")
	require.NoError(t, err)

	res := authority.Resolve(games.CoinFlip, "c", 0, "heads")
	require.NotNil(t, res.Win)
	assert.Equal(t, res.Value() == models.Outcome("heads"), *res.Win)
}
