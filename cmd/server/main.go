package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/infrastructure/config"
	"github.com/cloudmarket/backend/internal/infrastructure/logger"
	"github.com/cloudmarket/backend/internal/infrastructure/persistence"
	"github.com/cloudmarket/backend/internal/infrastructure/scheduler"
	"github.com/cloudmarket/backend/internal/interfaces/http/handler"
	"github.com/cloudmarket/backend/internal/interfaces/http/middleware"
	"github.com/cloudmarket/backend/internal/interfaces/http/router"
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

	log.Info("Starting billing engine",
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
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	itemRepo := persistence.NewGormInvoiceItemRepository(db.DB)
	resourceRepo := persistence.NewGormResourceRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	usageRepo := persistence.NewGormComponentUsageRepository(db.DB)

	// Transaction scope for the multi-repository billing flows
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Registrator registry: one strategy per resource kind
	registry := billing.NewRegistratorRegistry()
	if err := registry.Register(billingapp.NewInstanceRegistrator(resourceRepo, planRepo, itemRepo)); err != nil {
		log.Fatal("Failed to register instance registrator", zap.Error(err))
	}
	if err := registry.Register(billingapp.NewVolumeRegistrator(resourceRepo, planRepo, itemRepo)); err != nil {
		log.Fatal("Failed to register volume registrator", zap.Error(err))
	}
	if err := registry.Register(billingapp.NewPackageRegistrator(resourceRepo, planRepo, itemRepo)); err != nil {
		log.Fatal("Failed to register package registrator", zap.Error(err))
	}

	// Initialize application services
	registrationService := billingapp.NewRegistrationService(
		txScope, registry, customerRepo, log,
		billingapp.RegistrationServiceConfig{DefaultTaxPercent: cfg.Billing.DefaultTaxPercent},
	)
	invoiceService := billingapp.NewInvoiceService(txScope, invoiceRepo, itemRepo, registrationService, log)
	monthlyService := billingapp.NewMonthlyInvoiceService(txScope, registry, registrationService, resourceRepo, log)
	usageService := billingapp.NewUsageAggregationService(txScope, usageRepo, resourceRepo, planRepo, registrationService, log)
	exportService := billingapp.NewExportService(invoiceRepo, itemRepo, customerRepo, log,
		billingapp.ExportServiceConfig{Delimiter: cfg.Export.ExportDelimiter()})

	// Background schedulers
	if cfg.Scheduler.Enabled {
		monthlyScheduler := scheduler.NewMonthlyInvoiceScheduler(monthlyService, log,
			scheduler.MonthlyInvoiceSchedulerConfig{
				Enabled:    true,
				RunHour:    cfg.Scheduler.MonthlyRunHour,
				RunTimeout: cfg.Scheduler.JobTimeout,
			})
		if err := monthlyScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start monthly invoice scheduler", zap.Error(err))
		}
		defer func() {
			if err := monthlyScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping monthly invoice scheduler", zap.Error(err))
			}
		}()

		usageScheduler := scheduler.NewUsageAggregationScheduler(usageService, log,
			scheduler.UsageAggregationSchedulerConfig{
				Enabled:    true,
				Interval:   cfg.Scheduler.UsageAggregateInterval,
				RunTimeout: cfg.Scheduler.JobTimeout,
			})
		if err := usageScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start usage aggregation scheduler", zap.Error(err))
		}
		defer func() {
			if err := usageScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping usage aggregation scheduler", zap.Error(err))
			}
		}()

		log.Info("Billing schedulers started",
			zap.Int("monthly_run_hour", cfg.Scheduler.MonthlyRunHour),
			zap.Duration("usage_aggregate_interval", cfg.Scheduler.UsageAggregateInterval),
		)
	}

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, exportService)
	usageHandler := handler.NewUsageHandler(usageService)
	eventHandler := handler.NewResourceEventHandler(registrationService, resourceRepo)
	runHandler := handler.NewBillingRunHandler(monthlyService, usageService)
	systemHandler := handler.NewSystemHandler()

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
	r.Register(invoiceHandler).
		Register(usageHandler).
		Register(eventHandler).
		Register(runHandler).
		Register(systemHandler)
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
