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
	"github.com/metervend/internal/config"
	"github.com/metervend/internal/device"
	"github.com/metervend/internal/handler"
	"github.com/metervend/internal/middleware"
	"github.com/metervend/internal/models"
	"github.com/metervend/internal/payment"
	"github.com/metervend/internal/repository"
	"github.com/metervend/internal/service"
	"github.com/metervend/internal/worker"
	"github.com/metervend/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize request logging
	if err := middleware.InitLogger(cfg.Log.Dir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis
	rdb := initRedis(cfg)

	// Auto migrate database
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	meterRepo := repository.NewMeterRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	logRepo := repository.NewLogRepository(db)

	// Seed the emergency catalog
	if err := offerRepo.SeedDefaults(); err != nil {
		log.Fatalf("Failed to seed emergency offers: %v", err)
	}

	// External collaborators
	gateway := payment.NewClient(cfg.Payment)
	var relay device.Relay = device.Nop{}
	var controller *device.Controller
	if cfg.Device.Addr != "" {
		controller = device.NewController(cfg.Device)
		relay = controller
	} else {
		log.Println("No controller endpoint configured, relay disabled")
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, meterRepo, cfg.JWT)
	ledgerService := service.NewLedgerService(meterRepo, offerRepo, logRepo, gateway, relay)
	readingService := service.NewReadingService(rdb)

	// Live readings hub
	hub := ws.NewHub()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, ledgerService)
	meterHandler := handler.NewMeterHandler(ledgerService, readingService)
	streamHandler := handler.NewStreamHandler(ledgerService, hub)

	// Create Gin router
	router := gin.Default()

	// Add request logging middleware
	router.Use(middleware.RequestLoggerMiddleware())

	// Add CORS middleware
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
		})
	})

	// API v1 routes
	authMiddleware := middleware.AuthMiddleware(authService)
	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1, authMiddleware)
		meterHandler.RegisterRoutes(v1, authMiddleware)
		streamHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Start the usage decrement worker
	usagePerTick, err := decimal.NewFromString(cfg.Usage.UnitsPerTick)
	if err != nil {
		log.Fatalf("Invalid usage.units_per_tick %q: %v", cfg.Usage.UnitsPerTick, err)
	}
	usageWorker := worker.NewUsageWorker(
		meterRepo,
		relay,
		readingService,
		hub,
		usagePerTick,
		cfg.Usage.UsageInterval(),
	)
	go usageWorker.Start()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the usage worker
	usageWorker.Stop()

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close the controller connection
	if controller != nil {
		if err := controller.Close(); err != nil {
			log.Printf("Error closing controller connection: %v", err)
		}
	}

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}

	log.Println("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
		// Surface unique-index collisions as gorm.ErrDuplicatedKey so meter
		// number generation can retry
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Meter{},
		&models.EmergencyOffer{},
		&models.ActivityLog{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
