package storage_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/storage"
)

func stores(t *testing.T) map[string]storage.PendingStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]storage.PendingStore{
		"memory": storage.NewMemoryStore("casino"),
		"redis":  storage.NewRedisStore(client, "casino"),
	}
}

func TestPendingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(ctx, "coin-flip")
			require.ErrorIs(t, err, storage.ErrNotFound)

			require.NoError(t, store.Save(ctx, "coin-flip", models.PendingWin("r1", 500)))

			rec, err := store.Load(ctx, "coin-flip")
			require.NoError(t, err)
			require.True(t, rec.IsWin())
			assert.Equal(t, int64(500), *rec.WinAmount)
			assert.Equal(t, "r1", rec.RoundID)

			_, err = store.Load(ctx, "dice-classic")
			assert.ErrorIs(t, err, storage.ErrNotFound, "records are keyed per game")

			require.NoError(t, store.Delete(ctx, "coin-flip"))
			_, err = store.Load(ctx, "coin-flip")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestPendingStoreRejectsInvalidRecord(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(context.Background(), "coin-flip", models.PendingResult{})
			assert.ErrorIs(t, err, models.ErrInvalidPending)
		})
	}
}

func TestRedisStoreKeyConvention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := storage.NewRedisStore(client, "casino")
	require.NoError(t, store.Save(context.Background(), "dice-classic", models.PendingLoss("", 100)))

	raw, err := mr.Get("casino_pending_slot_result_dice-classic")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lossAmount":100}`, raw)
}
