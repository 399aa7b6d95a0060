package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/grid"
	"folio/internal/handlers"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/planner"
	"folio/internal/quotes"
	"folio/internal/state"
	"folio/internal/tracker"
	"folio/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	validator.Register()

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Hydrate the in-memory state container; after this point it is the
	// session authority and the database is a write-behind mirror.
	gateway := state.NewGormGateway(dbManager.DB())
	container := state.NewContainer(gateway, log, appConfig.SyncTimeout)
	if err := container.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to hydrate state: %w", err)
	}
	defer container.Flush()

	// Quote providers
	httpClient := &http.Client{Timeout: 10 * time.Second}
	quoteService := quotes.NewService(
		quotes.NewYahooProvider(httpClient, appConfig.StockQuoteURL),
		quotes.NewCoinGeckoProvider(httpClient, appConfig.CryptoQuoteURL),
	)

	// Domain services
	gridBuilder := grid.NewBuilder(container, log)
	plannerService := planner.NewService(container, quoteService)
	trackerService := tracker.New(container, quoteService, log)
	trackerService.OnCompleted = func(plan *models.SellPlan) {
		log.Infow("plan fully executed", "plan_id", plan.ID, "symbol", plan.Symbol)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(container)
	portfolioHandler := handlers.NewPortfolioHandler(container)
	groupHandler := handlers.NewGroupHandler(container)
	transactionHandler := handlers.NewTransactionHandler(container)
	gridHandler := handlers.NewGridHandler(container, gridBuilder)
	planHandler := handlers.NewPlanHandler(container, plannerService, trackerService)
	snapshotHandler := handlers.NewSnapshotHandler(container)
	quoteHandler := handlers.NewQuoteHandler(quoteService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Owner profile
	protected.GET("/profile", authHandler.GetProfile)

	// Portfolio and account routes
	portfolios := protected.Group("/portfolios")
	portfolios.GET("", portfolioHandler.List)
	portfolios.POST("", portfolioHandler.Create)
	portfolios.PUT("/:id", portfolioHandler.Update)
	portfolios.GET("/:id/accounts", portfolioHandler.ListAccounts)
	portfolios.POST("/:id/accounts", portfolioHandler.CreateAccount)

	// Combined group routes
	groups := protected.Group("/groups")
	groups.GET("", groupHandler.List)
	groups.POST("", groupHandler.Create)
	groups.DELETE("/:id", groupHandler.Delete)

	// Ledger routes
	protected.GET("/holdings", transactionHandler.Holdings)
	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.List)
	transactions.POST("", transactionHandler.Create)
	transactions.DELETE("/:id", transactionHandler.Delete)

	// Grid routes
	gridRoutes := protected.Group("/grid")
	gridRoutes.GET("", gridHandler.Get)
	gridRoutes.PUT("/quantity", gridHandler.SetQuantity)
	gridRoutes.POST("/track", gridHandler.Track)
	gridRoutes.DELETE("/track", gridHandler.Untrack)

	// Sell-plan wizard and tracker routes
	plans := protected.Group("/plans")
	plans.GET("", planHandler.List)
	plans.DELETE("/:id", planHandler.Delete)
	plans.GET("/:id/progress", planHandler.Progress)
	plans.POST("/:id/accounts/:accountId/sell-completed", planHandler.MarkSellCompleted)
	plans.POST("/:id/accounts/:accountId/buys/:symbol/completed", planHandler.MarkBuyCompleted)

	drafts := plans.Group("/drafts")
	drafts.POST("", planHandler.StartDraft)
	drafts.GET("/:id", planHandler.GetDraft)
	drafts.DELETE("/:id", planHandler.DiscardDraft)
	drafts.POST("/:id/symbol", planHandler.ChooseSymbol)
	drafts.POST("/:id/price", planHandler.SetManualPrice)
	drafts.POST("/:id/percentage", planHandler.SetPercentage)
	drafts.POST("/:id/shortcut", planHandler.UseShortcut)
	drafts.POST("/:id/accounts", planHandler.SelectAccounts)
	drafts.POST("/:id/buys", planHandler.SetBuySymbols)
	drafts.POST("/:id/buy-percentages", planHandler.SetBuyPercentages)
	drafts.POST("/:id/confirm", planHandler.ConfirmDraft)

	// Allocation history and quotes
	protected.GET("/snapshots", snapshotHandler.List)
	protected.GET("/quotes", quoteHandler.Get)

	log.Infof("Starting Folio backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
