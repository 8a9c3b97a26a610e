package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string
	JWTTTL    time.Duration

	// Outcome authority; empty means a fresh random seed per process.
	ServerSeed string

	Player PlayerConfig
}

// PlayerConfig drives cmd/player, the headless mini-game client.
type PlayerConfig struct {
	ID        int64
	Token     string
	APIURL    string
	SocketURL string
	Currency  string

	StorageNamespace string
	OutcomeTimeout   time.Duration
	RecoveryAttempts int

	ChannelRetryDelay time.Duration
	ChannelMaxRetries int
}

func Load() (*Config, error) {
	var err error
	cfg := &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		RedisURL:   getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:  getEnv("REDIS_PASSWORD", ""),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		ServerSeed: getEnv("SERVER_SEED", ""),
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	p := &cfg.Player
	p.Token = getEnv("PLAYER_TOKEN", "")
	p.APIURL = getEnv("PLAYER_API_URL", "http://localhost:8080")
	p.SocketURL = getEnv("PLAYER_SOCKET_URL", "")
	p.Currency = getEnv("PLAYER_CURRENCY", "USD")
	p.StorageNamespace = getEnv("PLAYER_STORAGE_NAMESPACE", "casino")

	id, err := getInt("PLAYER_ID", 0)
	if err != nil {
		return nil, err
	}
	p.ID = int64(id)

	if p.OutcomeTimeout, err = getDuration("PLAYER_OUTCOME_TIMEOUT", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if p.RecoveryAttempts, err = getInt("PLAYER_RECOVERY_ATTEMPTS", 1); err != nil {
		return nil, err
	}
	if p.ChannelRetryDelay, err = getDuration("PLAYER_CHANNEL_RETRY_DELAY", time.Second); err != nil {
		return nil, err
	}
	if p.ChannelMaxRetries, err = getInt("PLAYER_CHANNEL_MAX_RETRIES", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
