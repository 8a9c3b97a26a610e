package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"casino-round-settlement/internal/config"
	"casino-round-settlement/internal/handlers"
	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel)

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		return err
	}
	defer redisService.Close()

	secret, err := jwtSecret(cfg, rand.Reader, logger)
	if err != nil {
		return err
	}

	jwtService, err := services.NewJWTService(secret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	authority, err := services.NewOutcomeAuthority(cfg.ServerSeed)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, wsHandler := handlers.NewRouter(handlers.RouterConfig{
		Redis:     redisService,
		JWT:       jwtService,
		Authority: authority,
		Logger:    logger,
		DevTokens: !cfg.IsProduction(),
	})
	defer wsHandler.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serr := srv.ListenAndServe()
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}
		errCh <- nil
	}()

	logger.Info("server started", "port", cfg.Port, "env", cfg.Env, "server_hash", authority.ServerHash())

	select {
	case <-ctx.Done():
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}
		return nil
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// jwtSecret returns the configured secret, or an ephemeral one outside
// production.
func jwtSecret(cfg *config.Config, entropy io.Reader, logger *slog.Logger) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	if cfg.IsProduction() {
		return "", errors.New("JWT_SECRET is required in production")
	}

	secret, err := randomHex(entropy, 32)
	if err != nil {
		return "", err
	}
	logger.Warn("JWT_SECRET not set, using an ephemeral secret")
	return secret, nil
}

func randomHex(entropy io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(entropy, b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
