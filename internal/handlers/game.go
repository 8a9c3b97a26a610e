package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-round-settlement/internal/games"
	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/services"
)

type GameHandler struct {
	authority    *services.OutcomeAuthority
	redisService *services.RedisService
}

func NewGameHandler(authority *services.OutcomeAuthority, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		authority:    authority,
		redisService: redisService,
	}
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get verification data",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": models.VerificationData{
			ServerHash:   h.authority.ServerHash(),
			CurrentNonce: wallet.Nonce,
		},
	})
}

// VerifyGame recomputes an outcome from a revealed server seed.
func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	game, err := games.Lookup(req.GameID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Verification failed",
			"details": err.Error(),
		})
		return
	}

	outcome, hash := services.VerifyOutcome(game, req.ServerSeed, req.ClientSeed, req.Nonce)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"verification": gin.H{
			"outcome":          outcome,
			"calculated_hash":  hash,
			"server_seed_hash": services.HashServerSeed(req.ServerSeed),
			"game_id":          game.ID,
			"client_seed":      req.ClientSeed,
			"nonce":            req.Nonce,
		},
	})
}
