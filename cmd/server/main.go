package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dealingapp "github.com/dealerdesk/backend/internal/application/dealing"
	"github.com/dealerdesk/backend/internal/infrastructure/auth"
	"github.com/dealerdesk/backend/internal/infrastructure/config"
	"github.com/dealerdesk/backend/internal/infrastructure/event"
	"github.com/dealerdesk/backend/internal/infrastructure/logger"
	"github.com/dealerdesk/backend/internal/infrastructure/persistence"
	"github.com/dealerdesk/backend/internal/interfaces/http/handler"
	"github.com/dealerdesk/backend/internal/interfaces/http/middleware"
	"github.com/dealerdesk/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting DealerDesk Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	dealRepo := persistence.NewGormDealRepository(db.DB)
	documentRepo := persistence.NewGormSalesDocumentRepository(db.DB)
	shareLinkRepo := persistence.NewGormShareLinkRepository(db.DB)
	sequences := persistence.NewGormSequenceAllocator(db.DB)
	factsProvider := persistence.NewGormFactsProvider(db.DB)
	saleMarker := persistence.NewGormVehicleSaleMarker(db.DB)

	// Initialize application services
	dealService := dealingapp.NewDealService(dealRepo, documentRepo, sequences, db, factsProvider)
	documentService := dealingapp.NewDocumentService(documentRepo, dealRepo, shareLinkRepo, sequences, db, factsProvider)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Deal delivered -> vehicle flagged sold in master data
	dealDeliveredHandler := dealingapp.NewDealDeliveredHandler(saleMarker, log)
	eventBus.Subscribe(dealDeliveredHandler)

	// Delivered deal cancelled -> vehicle returned to the available pool
	dealCancelledHandler := dealingapp.NewDealCancelledHandler(saleMarker, log)
	eventBus.Subscribe(dealCancelledHandler)

	log.Info("Event handlers registered",
		zap.Strings("deal_delivered_events", dealDeliveredHandler.EventTypes()),
		zap.Strings("deal_cancelled_events", dealCancelledHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	dealService.SetEventPublisher(eventBus)
	documentService.SetEventPublisher(eventBus)

	// JWT validation for the authenticated API surface
	jwtService := auth.NewJWTService(cfg.JWT)

	// Optional Redis-backed token blacklist for revoked sessions
	var tokenBlacklist auth.TokenBlacklist
	if cfg.Redis.Enabled {
		blacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect token blacklist", zap.Error(err))
		}
		defer func() {
			if err := blacklist.Close(); err != nil {
				log.Error("Error closing token blacklist", zap.Error(err))
			}
		}()
		tokenBlacklist = blacklist
		log.Info("Token blacklist enabled", zap.String("host", cfg.Redis.Host))
	}

	// Initialize HTTP handlers
	dealHandler := handler.NewDealHandler(dealService)
	documentHandler := handler.NewDocumentHandler(documentService)
	shareHandler := handler.NewShareHandler(documentService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes.
	// Shared document links are resolved by token alone, no auth.
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
		},
		SkipPathPrefixes: []string{
			"/api/v1/shared/",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Dealer context extraction: JWT claim first, X-Tenant-ID header as
	// the development fallback
	r.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		HeaderEnabled: true,
		JWTEnabled:    true,
		SkipPaths:     []string{"/api/v1/ping", "/api/v1/shared"},
		Required:      false,
		Logger:        log,
	}))

	// Deal lifecycle routes
	dealRoutes := router.NewDomainGroup("deals", "/deals")
	dealRoutes.POST("", dealHandler.Create)
	dealRoutes.GET("", dealHandler.List)
	dealRoutes.GET("/stats/summary", dealHandler.StatusSummary)
	dealRoutes.GET("/number/:number", dealHandler.GetByNumber)
	dealRoutes.GET("/:id", dealHandler.GetByID)
	dealRoutes.PUT("/:id/customer", dealHandler.SetCustomer)
	dealRoutes.PUT("/:id/classification", dealHandler.SetClassification)
	dealRoutes.PUT("/:id/pricing", dealHandler.SetPricing)
	dealRoutes.PUT("/:id/part-exchange", dealHandler.SetPartExchange)
	dealRoutes.PUT("/:id/delivery", dealHandler.SetDelivery)
	dealRoutes.POST("/:id/payments", dealHandler.AddPayment)
	dealRoutes.POST("/:id/payments/:paymentId/refund", dealHandler.RefundPayment)
	dealRoutes.POST("/:id/add-ons", dealHandler.AddAddOn)
	dealRoutes.DELETE("/:id/add-ons/:addOnId", dealHandler.RemoveAddOn)
	dealRoutes.POST("/:id/requests", dealHandler.AddRequest)
	dealRoutes.PUT("/:id/requests/:requestId/status", dealHandler.TransitionRequest)
	dealRoutes.POST("/:id/deposit", dealHandler.TakeDeposit)
	dealRoutes.POST("/:id/invoice", dealHandler.Invoice)
	dealRoutes.POST("/:id/deliver", dealHandler.Deliver)
	dealRoutes.POST("/:id/complete", dealHandler.Complete)
	dealRoutes.POST("/:id/cancel", dealHandler.Cancel)
	// Documents issued against a deal
	dealRoutes.GET("/:id/documents", documentHandler.ListByDeal)
	dealRoutes.POST("/:id/documents/deposit-receipt", documentHandler.IssueDepositReceipt)
	dealRoutes.POST("/:id/documents/payment-receipt", documentHandler.IssuePaymentReceipt)

	// Document routes
	documentRoutes := router.NewDomainGroup("documents", "/documents")
	documentRoutes.GET("", documentHandler.List)
	documentRoutes.POST("/self-bill", documentHandler.IssueSelfBill)
	documentRoutes.GET("/:id", documentHandler.GetByID)
	documentRoutes.POST("/:id/void", documentHandler.Void)
	documentRoutes.POST("/:id/share-links", documentHandler.CreateShareLink)

	// Public shared document resolution, credential is the token itself
	sharedRoutes := router.NewDomainGroup("shared", "/shared")
	sharedRoutes.GET("/documents/:token", shareHandler.Resolve)

	// Register all domain groups
	r.Register(dealRoutes).
		Register(documentRoutes).
		Register(sharedRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
