package services

import "time"

const (
	KeyUserSession      = "user:%d:session:%s"
	KeyWallet           = "wallet:%d"
	KeyRoundLock        = "wallet:%d:round:%s"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "user:%d:transactions"
	KeyRateLimit        = "ratelimit:%d:%s"

	TTLUserSession = 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour // 30 days

	DefaultRateLimitBets   = 120 // per minute
	DefaultRateLimitSettle = 240 // per minute

	MaxTransactions = 100
)
