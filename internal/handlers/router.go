package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/middleware"
	"casino-round-settlement/internal/services"
)

type RouterConfig struct {
	Redis     *services.RedisService
	JWT       *services.JWTService
	Authority *services.OutcomeAuthority
	Logger    *slog.Logger
	// DevTokens enables POST /auth/token.
	DevTokens bool
}

// NewRouter builds the API. The returned socket handler owns the hub and must
// be closed on shutdown.
func NewRouter(cfg RouterConfig) (*gin.Engine, *WebSocketHandler) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	wsHandler := NewWebSocketHandler(cfg.Authority, cfg.Redis, logger)
	walletHandler := NewWalletHandler(cfg.Redis, wsHandler, logger)
	gameHandler := NewGameHandler(cfg.Authority, cfg.Redis)
	userHandler := NewUserHandler(cfg.Redis)
	authHandler := NewAuthHandler(cfg.Redis, cfg.JWT, cfg.DevTokens)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/token", authHandler.IssueToken)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg.JWT))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		wallet := protected.Group("/wallet")
		wallet.Use(middleware.RateLimitMiddleware(cfg.Redis, logger))
		{
			wallet.POST("/bet", walletHandler.PlaceBet)
			wallet.POST("/win", walletHandler.AddWinnings)
			wallet.POST("/loss", walletHandler.MarkLoss)
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/transactions", walletHandler.GetTransactions)
		}

		games := protected.Group("/games")
		{
			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/verify", gameHandler.VerifyGame)
		}
	}

	return router, wsHandler
}
