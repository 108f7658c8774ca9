package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"oracle/internal/blockchain"
	"oracle/internal/cache"
	"oracle/internal/config"
	"oracle/internal/database"
	"oracle/internal/handlers"
	"oracle/internal/jobs"
	"oracle/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Token gate for prize-bearing markets
	gate, err := blockchain.NewTokenGate(cfg.Gate.Network, cfg.Gate.MintAddress, cfg.Gate.MinBalance)
	if err != nil {
		log.Fatalf("Failed to init token gate: %v", err)
	}

	// Optional Redis leaderboard cache
	var leaderboardCache services.LeaderboardCache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.New(context.Background(), cache.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		leaderboardCache = cache.NewLeaderboardCache(redisClient)
		log.Println("Leaderboard cache enabled")
	}

	// Initialize services
	ledgerService := services.NewLedgerService(db, cfg.Points.SignupBonus, cfg.Points.DailyBonus)
	priceService := services.NewPriceService(cfg.Prices.BaseURL)
	resolverService := services.NewResolverService(priceService)
	reputationService := services.NewReputationService(db, ledgerService)
	entryService := services.NewEntryService(db, ledgerService, gate, cfg.Gate.AdminWallets)
	settlementService := services.NewSettlementService(db, resolverService, ledgerService, reputationService)
	tournamentService := services.NewTournamentService(db, leaderboardCache)

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(db, entryService, settlementService)
	userHandler := handlers.NewUserHandler(ledgerService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)

	// Start settlement sweep job
	settlementJob := jobs.NewSettlementJob(settlementService, cfg.Jobs.SettlementSpec, context.Background())
	if err := settlementJob.Start(); err != nil {
		log.Fatalf("Failed to start settlement job: %v", err)
	}

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		// Market endpoints
		api.GET("/markets", marketHandler.GetMarkets)
		api.GET("/markets/:id", marketHandler.GetMarketByID)
		api.POST("/markets", marketHandler.CreateMarket)
		api.POST("/markets/:id/enter", marketHandler.EnterPrediction)
		api.POST("/markets/:id/settle", marketHandler.SettleMarket)
		api.POST("/markets/:id/cancel", marketHandler.CancelMarket)
		api.POST("/settlements/run", marketHandler.SettleAllExpired)

		// User endpoints
		api.GET("/users/:wallet", userHandler.GetProfile)
		api.POST("/users/:wallet/claim-daily", userHandler.ClaimDailyBonus)
		api.GET("/users/:wallet/ledger", userHandler.GetLedger)

		// Tournament endpoints
		api.GET("/tournaments", tournamentHandler.GetTournaments)
		api.POST("/tournaments/:id/join", tournamentHandler.Join)
		api.GET("/tournaments/:id/leaderboard", tournamentHandler.Leaderboard)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	settlementJob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
