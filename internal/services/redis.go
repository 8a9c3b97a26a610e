package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casino-round-settlement/internal/config"
	"casino-round-settlement/internal/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRoundOpen           = errors.New("round already open")
	ErrRoundNotFound       = errors.New("round not found or already settled")
	ErrPayoutMismatch      = errors.New("payout does not match stake and multiplier")
	ErrSessionNotFound     = errors.New("session not found")
)

// Script status codes. Non-negative results are the new balance.
const (
	codeInsufficient   = -1
	codeRoundOpen      = -2
	codeRoundNotFound  = -3
	codePayoutMismatch = -4
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisServiceFromClient(client), nil
}

func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Client() *redis.Client {
	return s.client
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// GetWallet returns the wallet, crediting DefaultBalance on first access.
func (s *RedisService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "balance", models.DefaultBalance)
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	wallet := models.Wallet{UserID: userID}
	if err := all.Scan(&wallet); err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return &wallet, nil
}

func (s *RedisService) ensureWallet(ctx context.Context, key string) error {
	return s.client.HSetNX(ctx, key, "balance", models.DefaultBalance).Err()
}

var debitStakeScript = redis.NewScript(`
	local wallet = KEYS[1]
	local lock = KEYS[2]
	local amount = tonumber(ARGV[1])

	if redis.call("EXISTS", lock) == 1 then
		return -2
	end

	local balance = tonumber(redis.call("HGET", wallet, "balance") or "0")
	if balance < amount then
		return -1
	end

	redis.call("HINCRBY", wallet, "balance", -amount)
	redis.call("HINCRBY", wallet, "locked_balance", amount)
	redis.call("HINCRBY", wallet, "total_wagered", amount)

	redis.call("HSET", lock, "amount", amount, "game_id", ARGV[2], "multiplier", ARGV[3])

	return tonumber(redis.call("HGET", wallet, "balance"))
`)

// DebitStake moves the stake from balance to locked balance and opens the
// round lock that settlement later consumes. The lock has no expiry: the
// stake stays locked until a win or loss closes the round.
func (s *RedisService) DebitStake(ctx context.Context, userID int64, stake models.Stake, multiplier int64) (int64, error) {
	key := fmt.Sprintf(KeyWallet, userID)
	if err := s.ensureWallet(ctx, key); err != nil {
		return 0, fmt.Errorf("failed to create wallet: %w", err)
	}

	lock := fmt.Sprintf(KeyRoundLock, userID, stake.RoundID)
	return s.runScript(ctx, debitStakeScript, []string{key, lock},
		stake.Amount, stake.GameID, multiplier)
}

var creditWinScript = redis.NewScript(`
	local wallet = KEYS[1]
	local lock = KEYS[2]
	local payout = tonumber(ARGV[1])

	local stake = redis.call("HGET", lock, "amount")
	if not stake then
		return -3
	end
	stake = tonumber(stake)

	local multiplier = tonumber(redis.call("HGET", lock, "multiplier") or "0")
	if payout ~= stake * multiplier then
		return -4
	end

	redis.call("DEL", lock)
	redis.call("HINCRBY", wallet, "locked_balance", -stake)
	redis.call("HINCRBY", wallet, "balance", payout)
	redis.call("HINCRBY", wallet, "total_won", payout)

	return tonumber(redis.call("HGET", wallet, "balance"))
`)

// CreditWin closes a round as won. The payout is gross, stake included.
func (s *RedisService) CreditWin(ctx context.Context, userID int64, roundID string, payout int64) (int64, error) {
	keys := []string{fmt.Sprintf(KeyWallet, userID), fmt.Sprintf(KeyRoundLock, userID, roundID)}
	return s.runScript(ctx, creditWinScript, keys, payout)
}

var confirmLossScript = redis.NewScript(`
	local wallet = KEYS[1]
	local lock = KEYS[2]

	local stake = redis.call("HGET", lock, "amount")
	if not stake then
		return -3
	end

	redis.call("DEL", lock)
	redis.call("HINCRBY", wallet, "locked_balance", -tonumber(stake))

	return tonumber(redis.call("HGET", wallet, "balance"))
`)

func (s *RedisService) ConfirmLoss(ctx context.Context, userID int64, roundID string) (int64, error) {
	keys := []string{fmt.Sprintf(KeyWallet, userID), fmt.Sprintf(KeyRoundLock, userID, roundID)}
	return s.runScript(ctx, confirmLossScript, keys)
}

// RoundStake returns the stake locked for an open round.
func (s *RedisService) RoundStake(ctx context.Context, userID int64, roundID string) (int64, error) {
	amount, err := s.client.HGet(ctx, fmt.Sprintf(KeyRoundLock, userID, roundID), "amount").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrRoundNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get round stake: %w", err)
	}
	return amount, nil
}

func (s *RedisService) runScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (int64, error) {
	res, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("wallet script failed: %w", err)
	}

	switch res {
	case codeInsufficient:
		return 0, ErrInsufficientBalance
	case codeRoundOpen:
		return 0, ErrRoundOpen
	case codeRoundNotFound:
		return 0, ErrRoundNotFound
	case codePayoutMismatch:
		return 0, ErrPayoutMismatch
	}
	return res, nil
}

// NextNonce returns the nonce for the user's next authoritative outcome.
func (s *RedisService) NextNonce(ctx context.Context, userID int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, fmt.Sprintf(KeyWallet, userID), "nonce", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return n - 1, nil
}

func (s *RedisService) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, txKey, data, TTLTransaction)
		pipe.ZAdd(ctx, userTxKey, redis.Z{
			Score:  float64(tx.CreatedAt.UnixNano()),
			Member: tx.ID,
		})
		pipe.ZRemRangeByRank(ctx, userTxKey, 0, -(MaxTransactions + 1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetUserTransactions returns the newest transactions first.
func (s *RedisService) GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > MaxTransactions {
		limit = 50
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, userID)

	txIDs, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(txIDs))
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Bytes()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.UserID, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

// GetUserSession loads the session and refreshes its last access time.
func (s *RedisService) GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.Set(ctx, key, updated, redis.KeepTTL)
	}

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, userID int64, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)
	return s.client.Del(ctx, key).Err()
}

// CheckRateLimit counts hits in a fixed window and reports whether this one
// is still within limit.
func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID int64, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, userID, action)).Err()
}
