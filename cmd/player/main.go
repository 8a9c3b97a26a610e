// Command player is a headless mini-game client. It replays any result left
// pending by a previous run, then plays rounds against the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"casino-round-settlement/internal/channel"
	"casino-round-settlement/internal/config"
	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/ledger"
	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/settlement"
	"casino-round-settlement/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error running player: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	gameID := flag.String("game", games.CoinFlip.ID, "game to play (coin-flip, dice-classic)")
	choice := flag.String("choice", "", "outcome to bet on; defaults to the first outcome of the game")
	bet := flag.Int64("bet", 100, "stake per round in cents")
	rounds := flag.Int("rounds", 1, "number of rounds to play")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pc := cfg.Player

	logger := logging.SetupJSON(cfg.LogLevel)

	game, err := games.Lookup(*gameID)
	if err != nil {
		return err
	}
	if *choice == "" {
		*choice = string(game.Outcomes[0])
	}
	if pc.Token == "" {
		return errors.New("PLAYER_TOKEN is required")
	}

	pending, closeStore := openPendingStore(ctx, cfg, logger)
	defer closeStore()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+pc.Token)

	ch := channel.New(channel.Config{
		URL:        pc.SocketURL,
		Header:     header,
		RetryDelay: pc.ChannelRetryDelay,
		MaxRetries: pc.ChannelMaxRetries,
	}, logger)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("connect outcome channel: %w", err)
	}
	defer ch.Close()

	wallet := ledger.NewClient(pc.APIURL, pc.Token)
	if err := wallet.Refresh(ctx); err != nil {
		return err
	}

	engine := settlement.NewEngine(game, wallet, ch, pending, settlement.Config{
		PlayerID: pc.ID,
		Currency: pc.Currency,
		Timeout:  pc.OutcomeTimeout,
		Recovery: settlement.RecoveryPolicy{MaxAttempts: pc.RecoveryAttempts},
	}, logger)

	rec, err := engine.Recover(ctx)
	switch {
	case err != nil:
		logger.Warn("pending result not recovered", "error", err)
	case rec != nil:
		fmt.Printf("recovered round %s (win=%t)\n", rec.RoundID, rec.IsWin())
	}

	if pc.SocketURL != "" {
		waitConnected(ctx, ch, 2*time.Second)
	}

	fmt.Printf("balance %s\n", models.FormatCurrency(wallet.AvailableBalance()))

	for i := 1; i <= *rounds; i++ {
		if ctx.Err() != nil {
			break
		}

		res, err := engine.Play(ctx, models.Outcome(*choice), *bet)
		if errors.Is(err, settlement.ErrInsufficientBalance) {
			return err
		}
		if err != nil {
			logger.Error("round failed", "round", i, "error", err)
			continue
		}

		status := "lost"
		if res.Win {
			status = "won " + models.FormatCurrency(res.WinAmount)
		}
		if res.Pending {
			status += " (pending)"
		}
		fmt.Printf("round %d: %s -> %s [%s] %s, balance %s\n",
			i, res.Choice, res.Outcome, res.Source, status,
			models.FormatCurrency(wallet.AvailableBalance()))
	}

	return nil
}

// openPendingStore prefers Redis so parked results survive restarts, and
// falls back to memory when Redis is unreachable.
func openPendingStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.PendingStore, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		logger.Warn("redis unavailable, pending results will not survive restarts", "error", err)
		return storage.NewMemoryStore(cfg.Player.StorageNamespace), func() {}
	}

	return storage.NewRedisStore(client, cfg.Player.StorageNamespace), func() { client.Close() }
}

func waitConnected(ctx context.Context, ch *channel.Channel, timeout time.Duration) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for !ch.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}
