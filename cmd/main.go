package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"society-service/internal/background"
	"society-service/internal/cache"
	"society-service/internal/config"
	"society-service/internal/events"
	"society-service/internal/handlers"
	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/providers"
	"society-service/internal/repository"
	"society-service/internal/services"
	"society-service/pkg/otp"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Server.Mode == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize database connection
	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}

	if err := autoMigrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// Redis is required for login and visitor OTPs; fall back to a no-op
	// cache only so the rest of the API stays up without it
	var otpCache cache.Cache
	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, OTP caching disabled")
		otpCache = cache.NewNoOpCache()
	} else {
		otpCache = redisCache
		defer redisCache.Close()
	}

	ctx := context.Background()

	// SMS provider
	var smsProvider providers.SMSProvider
	if cfg.Twilio.Enabled {
		smsProvider = providers.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
		logger.Info("Twilio SMS provider initialized")
	} else {
		smsProvider = providers.NewMockSMSProvider(logger)
		logger.Warn("Twilio not configured, using mock SMS provider")
	}

	// Push provider
	var pushProvider providers.PushProvider
	if cfg.Firebase.Enabled {
		fcm, err := providers.NewFCMProvider(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.CredentialsJSON, logger)
		if err != nil {
			logger.WithError(err).Warn("FCM initialization failed, using mock push provider")
			pushProvider = providers.NewMockPushProvider(logger)
		} else {
			pushProvider = fcm
			logger.Info("FCM push provider initialized")
		}
	} else {
		pushProvider = providers.NewMockPushProvider(logger)
	}

	// File storage
	var fileStore providers.FileStore
	if cfg.GCS.Enabled {
		gcs, err := providers.NewGCSProvider(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile, cfg.GCS.CredentialsJSON, logger)
		if err != nil {
			logger.WithError(err).Warn("GCS initialization failed, file uploads disabled")
			fileStore = providers.NewNoOpFileStore()
		} else {
			fileStore = gcs
			defer gcs.Close()
			logger.Info("GCS file store initialized")
		}
	} else {
		fileStore = providers.NewNoOpFileStore()
	}

	// Event publisher
	var publisher services.EventPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err := events.NewPublisher(cfg.NATS.URL, logger)
		if err != nil {
			logger.WithError(err).Warn("NATS unavailable, events won't be published")
			publisher = events.NewNoOpPublisher()
		} else {
			publisher = natsPublisher
			defer natsPublisher.Close()
			logger.Info("NATS events publisher initialized")
		}
	} else {
		publisher = events.NewNoOpPublisher()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	visitorRepo := repository.NewVisitorRepository(db)
	emergencyRepo := repository.NewEmergencyRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	// Initialize services
	otpGen := otp.NewGenerator(cfg.OTP.Length)
	jwtService := services.NewJWTService(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessExpiryHours, cfg.JWT.RefreshExpiryDays)
	authService := services.NewAuthService(userRepo, tokenRepo, otpCache, smsProvider, otpGen, jwtService, services.AuthConfig{
		OTPExpiry:         cfg.OTP.Expiry(),
		MaxSendsPerWindow: cfg.OTP.MaxSendsPerWindow,
		RateWindow:        cfg.OTP.Window(),
		AllowDevFallback:  cfg.Server.Mode != "release",
	}, logger)
	userService := services.NewUserService(userRepo, logger)
	visitorService := services.NewVisitorService(visitorRepo, userRepo, otpCache, pushProvider, smsProvider, publisher, otpGen, logger)
	emergencyService := services.NewEmergencyService(emergencyRepo, userRepo, otpCache, pushProvider, smsProvider, publisher, services.EmergencyConfig{
		ContactNumber: cfg.Emergency.ContactNumber,
	}, logger)
	noticeService := services.NewNoticeService(noticeRepo, userRepo, pushProvider, publisher, logger)
	billingService := services.NewBillingService(billingRepo, userRepo, pushProvider, publisher, services.BillingConfig{
		UPIVPA:    cfg.Billing.UPIVPA,
		PayeeName: cfg.Billing.PayeeName,
	}, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	visitorHandler := handlers.NewVisitorHandler(visitorService)
	emergencyHandler := handlers.NewEmergencyHandler(emergencyService)
	noticeHandler := handlers.NewNoticeHandler(noticeService, userService)
	billingHandler := handlers.NewBillingHandler(billingService, userService)
	fileHandler := handlers.NewFileHandler(fileStore, time.Duration(cfg.GCS.URLExpiryMins)*time.Minute)

	initMetrics(db)

	// Background sweeps
	runner := background.NewRunner(visitorService, emergencyService, billingService,
		cfg.Background.SweepInterval(), cfg.Background.ReminderInterval(), logger)
	runner.Start()

	router := setupRouter(cfg, logger, jwtService, healthHandler, authHandler, userHandler,
		visitorHandler, emergencyHandler, noticeHandler, billingHandler, fileHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting society-service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	jwtService *services.JWTService,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	visitorHandler *handlers.VisitorHandler,
	emergencyHandler *handlers.EmergencyHandler,
	noticeHandler *handlers.NoticeHandler,
	billingHandler *handlers.BillingHandler,
	fileHandler *handlers.FileHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(logger))
	router.Use(middleware.CORS())

	// Health endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/live", healthHandler.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Public endpoints
	auth := v1.Group("/auth")
	{
		auth.POST("/send-otp", authHandler.SendOTP)
		auth.POST("/verify-otp", authHandler.VerifyOTP)
		auth.POST("/refresh", authHandler.RefreshToken)
	}
	v1.GET("/societies", userHandler.ListSocieties)
	v1.GET("/societies/:id/flats", userHandler.ListFlats)

	// Authenticated endpoints
	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/sessions", authHandler.ListSessions)
		authed.DELETE("/auth/sessions/:id", authHandler.RevokeSession)

		authed.GET("/profile", userHandler.GetProfile)
		authed.PUT("/profile", userHandler.UpdateProfile)
		authed.PUT("/profile/fcm-token", userHandler.UpdateFCMToken)
		authed.PUT("/profile/preferences", userHandler.UpdatePreferences)

		authed.GET("/members", userHandler.ListMembers)

		authed.POST("/files/upload-url", fileHandler.UploadURL)
		authed.GET("/files/download-url", fileHandler.DownloadURL)

		// Resident-owned visitor passes
		passes := authed.Group("/passes")
		passes.Use(middleware.RequireAnyRole(logger, models.RoleResident, models.RoleAdmin))
		{
			passes.POST("", visitorHandler.CreatePass)
			passes.GET("", visitorHandler.ListPasses)
			passes.GET("/:id", visitorHandler.GetPass)
			passes.DELETE("/:id", visitorHandler.CancelPass)
			passes.POST("/:id/answer", visitorHandler.AnswerApproval)
		}

		// Gate operations
		gate := authed.Group("/gate")
		gate.Use(middleware.RequireAnyRole(logger, models.RoleGuard, models.RoleAdmin))
		{
			gate.POST("/verify-otp", visitorHandler.VerifyOTP)
			gate.GET("/passes/:id", visitorHandler.GetPass)
			gate.POST("/passes/:id/movement", visitorHandler.RecordMovement)
			gate.POST("/approval-requests", visitorHandler.RequestApproval)
			gate.GET("/active", visitorHandler.ListActive)
			gate.GET("/expected", visitorHandler.ListExpected)
		}

		// Emergency alerts
		emergencies := authed.Group("/emergencies")
		{
			emergencies.POST("", emergencyHandler.Raise)
			emergencies.GET("", emergencyHandler.List)
			emergencies.GET("/:id", emergencyHandler.Get)
			emergencies.PUT("/:id/resolve", emergencyHandler.Resolve)
		}

		// Notices
		notices := authed.Group("/notices")
		{
			notices.POST("", middleware.RequireAnyRole(logger, models.RoleAdmin), noticeHandler.Create)
			notices.GET("", noticeHandler.List)
			notices.GET("/unread-count", noticeHandler.UnreadCount)
			notices.GET("/:id", noticeHandler.Get)
			notices.DELETE("/:id", noticeHandler.Delete)
			notices.POST("/:id/read", noticeHandler.MarkRead)
			notices.PUT("/:id/mute", noticeHandler.SetMuted)
		}

		// Maintenance billing
		bills := authed.Group("/bills")
		{
			bills.POST("", middleware.RequireAnyRole(logger, models.RoleAdmin), billingHandler.Create)
			bills.GET("", billingHandler.ListMine)
			bills.GET("/society", middleware.RequireAnyRole(logger, models.RoleAdmin), billingHandler.ListSociety)
			bills.GET("/summary", billingHandler.Summary)
			bills.GET("/:id", billingHandler.Get)
			bills.POST("/:id/payments", billingHandler.RecordPayment)
			bills.GET("/:id/payments", billingHandler.ListPayments)
		}

		// Admin user management
		admin := authed.Group("/admin")
		admin.Use(middleware.RequireAnyRole(logger, models.RoleAdmin))
		{
			admin.PUT("/users/:id/block", userHandler.BlockUser)
			admin.PUT("/users/:id/unblock", userHandler.UnblockUser)
		}
	}

	return router
}

func autoMigrate(db *gorm.DB, logger *logrus.Logger) error {
	logger.Info("Starting database migration...")

	modelsToMigrate := []interface{}{
		&models.Society{},
		&models.Flat{},
		&models.User{},
		&models.RefreshToken{},
		&models.VisitorPass{},
		&models.Emergency{},
		&models.Notice{},
		&models.NoticeReadStatus{},
		&models.MaintenanceBill{},
		&models.Payment{},
	}

	for _, model := range modelsToMigrate {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	logger.Info("Database migration completed successfully")
	return nil
}

func initDatabase(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return db, nil
}

func initMetrics(db *gorm.DB) {
	activePasses := promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "society",
			Subsystem: "visitors",
			Name:      "active_passes",
			Help:      "Number of approved passes with a visitor currently inside",
		},
	)

	activeEmergencies := promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "society",
			Subsystem: "emergency",
			Name:      "active_alerts",
			Help:      "Number of currently active emergency alerts",
		},
	)

	unpaidBills := promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "society",
			Subsystem: "billing",
			Name:      "unpaid_bills",
			Help:      "Number of unpaid or partially paid maintenance bills",
		},
	)

	dbConnectionsOpen := promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "society",
			Subsystem: "db",
			Name:      "connections_open",
			Help:      "Number of open database connections",
		},
	)

	dbConnectionsInUse := promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "society",
			Subsystem: "db",
			Name:      "connections_in_use",
			Help:      "Number of database connections currently in use",
		},
	)

	// Refresh gauges periodically from the database
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			sqlDB, err := db.DB()
			if err != nil {
				continue
			}
			stats := sqlDB.Stats()
			dbConnectionsOpen.Set(float64(stats.OpenConnections))
			dbConnectionsInUse.Set(float64(stats.InUse))

			var count int64
			db.Model(&models.VisitorPass{}).
				Where("status = ? AND entry_time IS NOT NULL AND exit_time IS NULL", models.PassStatusApproved).
				Count(&count)
			activePasses.Set(float64(count))

			db.Model(&models.Emergency{}).
				Where("status = ?", models.EmergencyStatusActive).
				Count(&count)
			activeEmergencies.Set(float64(count))

			db.Model(&models.MaintenanceBill{}).
				Where("status IN ?", []string{models.BillStatusPending, models.BillStatusPartial, models.BillStatusOverdue}).
				Count(&count)
			unpaidBills.Set(float64(count))
		}
	}()
}
