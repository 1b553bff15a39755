package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/handlers"
	"github.com/carenest/therapy-booking/internal/middleware"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/services"
	"github.com/carenest/therapy-booking/pkg/jwt"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting therapy booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Metrics
	var m *metrics.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(cfg.Metrics.Namespace, registry)
	}

	// Repositories
	slotRepository := database.NewTimeSlotRepository(db.DB)
	paymentRepository := database.NewPaymentRepository(db.DB)
	bookingRepository := database.NewSessionBookingRepository(db.DB)
	refundRepository := database.NewRefundRequestRepository(db.DB)
	providerRepository := database.NewProviderRepository(db)
	childRepository := database.NewChildRepository(db)
	settingRepository := database.NewSystemSettingRepository(db)
	txManager := database.NewTxManager(db.DB)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.DevTokenExpiry)
	settlementService := services.NewSettlementConfigService(settingRepository, cfg.Booking, logger)
	slotStore := services.NewSlotStore(slotRepository, m)
	bookingGroupService := services.NewBookingGroupService(
		txManager,
		slotStore,
		paymentRepository,
		bookingRepository,
		childRepository,
		providerRepository,
		services.NewRegionAddressMatcher(),
		settlementService,
		m,
		logger,
		cfg.Booking.Location(),
	)
	lifecycleService := services.NewBookingLifecycleService(txManager, paymentRepository, bookingRepository, providerRepository, m, logger)
	refundService := services.NewRefundService(txManager, paymentRepository, bookingRepository, refundRepository, m, logger)

	var auditService *services.AuditService
	if cfg.Security.EnableAuditLog {
		auditService = services.NewAuditService(db)
	}

	healthHandler := handlers.NewHealthHandler(version, logger)
	healthHandler.Register("postgres", true, db.PingContext)

	var limiter middleware.RateLimiter
	switch {
	case !cfg.RateLimit.Enabled:
	case cfg.RateLimit.Backend == "memory":
		limiter = services.NewLocalRateLimiter(cfg.RateLimit, m)
		logger.Warn("Using in-process rate limiting; limits are per instance")
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup; rate limiter will follow RATE_LIMIT_FAIL_OPEN")
		}
		cancel()

		limiter = services.NewRateLimitService(services.NewRedisCounter(rdb), cfg.RateLimit, m, logger)
		// with fail-open a Redis outage degrades rather than stops the API
		healthHandler.Register("redis", !cfg.RateLimit.FailOpen, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingGroupService, lifecycleService, auditService, logger)
	refundHandler := handlers.NewRefundHandler(refundService, auditService, logger)
	adminHandler := handlers.NewAdminHandler(lifecycleService, settlementService, auditService, auditService, logger)
	slotHandler := handlers.NewSlotHandler(slotStore, cfg.Booking.Location(), logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery(), middleware.RequestID())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	if m != nil {
		router.Use(middleware.Metrics(m))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health checks
	router.GET("/health", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)
	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	limit := func(scope string) gin.HandlerFunc {
		if limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(limiter, scope, logger)
	}
	auth := middleware.AuthMiddleware(jwtService, logger)

	v1 := router.Group("/api/v1")
	{
		// Public slot calendar
		v1.GET("/providers/:id/slots", limit("slots"), slotHandler.ListProviderSlots)

		bookings := v1.Group("/bookings", auth)
		{
			bookings.POST("", middleware.RequireRole(models.RoleGuardian), limit("booking"), bookingHandler.CreateBookingGroup)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/journal", middleware.RequireRole(models.RoleTherapist), bookingHandler.SubmitJournal)
			bookings.POST("/:id/review", middleware.RequireRole(models.RoleGuardian), bookingHandler.SubmitReview)
		}

		refunds := v1.Group("/refund-requests", auth)
		{
			refunds.POST("", middleware.RequireRole(models.RoleGuardian), limit("refund"), refundHandler.CreateRefundRequest)
			refunds.GET("/:id", refundHandler.GetRefundRequest)
			refunds.POST("/:id/approve", middleware.RequireRole(models.RoleAdmin), refundHandler.ApproveRefundRequest)
			refunds.POST("/:id/reject", middleware.RequireRole(models.RoleAdmin), refundHandler.RejectRefundRequest)
		}

		admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/payments/:id/confirm", adminHandler.ConfirmPayment)
			admin.POST("/bookings/:id/settle", adminHandler.CompleteSettlement)
			admin.POST("/bookings/:id/status", adminHandler.UpdateBookingStatus)
			admin.GET("/refund-requests", refundHandler.ListRefundRequests)
			admin.GET("/settings", adminHandler.ListSettings)
			admin.GET("/settings/:key", adminHandler.GetSetting)
			admin.PUT("/settings/:key", adminHandler.UpdateSetting)
			admin.GET("/audit-logs/:entity_type/:id", adminHandler.GetAuditTrail)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
