package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/services"
)

const MaxBet = 10000 // cents

type WalletHandler struct {
	redisService *services.RedisService
	notifier     services.BalanceNotifier
	logger       *slog.Logger
}

// NewWalletHandler wires the ledger endpoints. notifier may be nil.
func NewWalletHandler(redisService *services.RedisService, notifier services.BalanceNotifier, logger *slog.Logger) *WalletHandler {
	if logger == nil {
		logger = logging.Discard()
	}

	return &WalletHandler{
		redisService: redisService,
		notifier:     notifier,
		logger:       logger,
	}
}

func (h *WalletHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.Stake
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if req.Amount > MaxBet {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Maximum bet is %d cents (%s)", MaxBet, models.FormatCurrency(MaxBet)),
		})
		return
	}

	game, err := games.Lookup(req.GameID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Unknown game",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	balance, err := h.redisService.DebitStake(ctx, userID, req, game.Multiplier)
	if err != nil {
		h.walletError(c, "Failed to place bet", err)
		return
	}

	h.record(ctx, userID, models.Transaction{
		Type:         models.TransactionTypeBet,
		Amount:       -req.Amount,
		BalanceAfter: balance,
		RoundID:      req.RoundID,
		GameID:       req.GameID,
		Description:  fmt.Sprintf("Bet %s on %s", models.FormatCurrency(req.Amount), game.ID),
	})
	h.respond(c, userID)
}

func (h *WalletHandler) AddWinnings(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Winnings must be positive"})
		return
	}

	ctx := c.Request.Context()
	balance, err := h.redisService.CreditWin(ctx, userID, req.RoundID, req.Amount)
	if err != nil {
		h.walletError(c, "Failed to add winnings", err)
		return
	}

	h.record(ctx, userID, models.Transaction{
		Type:         models.TransactionTypeWin,
		Amount:       req.Amount,
		BalanceAfter: balance,
		RoundID:      req.RoundID,
		Description:  fmt.Sprintf("Won %s", models.FormatCurrency(req.Amount)),
	})
	h.respond(c, userID)
}

func (h *WalletHandler) MarkLoss(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	stake, err := h.redisService.RoundStake(ctx, userID, req.RoundID)
	if err != nil {
		h.walletError(c, "Failed to mark loss", err)
		return
	}

	balance, err := h.redisService.ConfirmLoss(ctx, userID, req.RoundID)
	if err != nil {
		h.walletError(c, "Failed to mark loss", err)
		return
	}

	h.record(ctx, userID, models.Transaction{
		Type:         models.TransactionTypeLoss,
		Amount:       -stake,
		BalanceAfter: balance,
		RoundID:      req.RoundID,
		Description:  fmt.Sprintf("Lost %s", models.FormatCurrency(stake)),
	})
	h.respond(c, userID)
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get wallet",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": wallet.Response(),
	})
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > services.MaxTransactions {
		limit = 50
	}

	txs, err := h.redisService.GetUserTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get transactions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"count":        len(txs),
	})
}

// respond answers with the fresh wallet and pushes it to live sockets.
func (h *WalletHandler) respond(c *gin.Context, userID int64) {
	wallet, err := h.redisService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get wallet",
			"details": err.Error(),
		})
		return
	}

	balance := wallet.Response()
	if h.notifier != nil {
		h.notifier.NotifyBalance(userID, balance)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": balance,
	})
}

func (h *WalletHandler) record(ctx context.Context, userID int64, tx models.Transaction) {
	tx.ID = models.GenerateTransactionID()
	tx.UserID = userID
	tx.CreatedAt = time.Now()

	if err := h.redisService.SaveTransaction(ctx, &tx); err != nil {
		h.logger.Warn("failed to record transaction", "user_id", userID, "round_id", tx.RoundID, "error", err)
	}
}

func (h *WalletHandler) walletError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrRoundOpen), errors.Is(err, services.ErrRoundNotFound):
		status = http.StatusConflict
	case errors.Is(err, services.ErrPayoutMismatch):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "user_id", c.GetInt64("user_id"), "error", err)
	}

	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}
