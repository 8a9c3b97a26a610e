package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casino-round-settlement/internal/models"
	"casino-round-settlement/internal/services"
)

type AuthHandler struct {
	redisService *services.RedisService
	jwtService   *services.JWTService
	enabled      bool
}

// NewAuthHandler serves development tokens. With enabled false every request
// is refused.
func NewAuthHandler(redisService *services.RedisService, jwtService *services.JWTService, enabled bool) *AuthHandler {
	return &AuthHandler{
		redisService: redisService,
		jwtService:   jwtService,
		enabled:      enabled,
	}
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	if !h.enabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token issue is disabled"})
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	now := time.Now()
	session := &models.UserSession{
		UserID:       req.UserID,
		SessionID:    models.GenerateSessionID(),
		CreatedAt:    now,
		LastAccessed: now,
	}

	if err := h.redisService.StoreUserSession(c.Request.Context(), session, h.jwtService.TTL()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create session",
			"details": err.Error(),
		})
		return
	}

	token, err := h.jwtService.GenerateToken(session.UserID, session.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to issue token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"user_id":    session.UserID,
		"session_id": session.SessionID,
		"expires_at": now.Add(h.jwtService.TTL()),
	})
}
