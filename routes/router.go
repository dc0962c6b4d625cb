package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/config"
	"github.com/joshshshshs/mymacroai-sub002/controllers"
	"github.com/joshshshshs/mymacroai-sub002/engine"
	"github.com/joshshshshs/mymacroai-sub002/middleware"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, eng *engine.Engine) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	streakController := controllers.NewStreakController(db, eng)
	shopController := controllers.NewShopController(db, eng)
	leaderboardController := controllers.NewLeaderboardController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/google/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/google/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reward schedule and rankings
	api.GET("/milestones", streakController.Milestones)
	api.GET("/leaderboard/streaks", leaderboardController.Streaks)
	api.GET("/leaderboard/coins", leaderboardController.Coins)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/streak/evaluate", streakController.Evaluate)
	protected.GET("/streak/status", streakController.Status)
	protected.GET("/streak/history", streakController.History)
	protected.POST("/streak/restore", streakController.Restore)
	protected.GET("/streak/celebrations", streakController.Celebrations)
	protected.POST("/streak/celebrations/ack", streakController.AcknowledgeCelebration)

	protected.GET("/wallet", shopController.Wallet)
	protected.GET("/wallet/transactions", shopController.Transactions)
	protected.POST("/wallet/purchase", shopController.PurchaseCoins)
	protected.POST("/shop/freezes", shopController.PurchaseFreezes)
	protected.GET("/shop/cosmetics", shopController.Cosmetics)
	protected.POST("/shop/cosmetics/:id", shopController.PurchaseCosmetic)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
