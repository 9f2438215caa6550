package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "bulk-inventory-service/docs"
	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/clients/shopify"
	"bulk-inventory-service/internal/config"
	"bulk-inventory-service/internal/events"
	"bulk-inventory-service/internal/handlers"
	"bulk-inventory-service/internal/middleware"
	"bulk-inventory-service/internal/models"
	"bulk-inventory-service/internal/repository"
	"bulk-inventory-service/internal/secrets"
	"bulk-inventory-service/internal/services"
)

// @title Bulk Inventory API
// @version 1.0.0
// @description Spreadsheet import and export of store inventory quantities per location

// @BasePath /api/v1

// @securityDefinitions.apikey ShopDomain
// @in header
// @name X-Shopify-Shop-Domain

// @securityDefinitions.apikey APIKey
// @in header
// @name X-API-Key
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	logger := newLogger(cfg)

	var (
		sources     []services.CredentialSource
		sessionRepo *repository.SessionRepository
		checks      = map[string]handlers.ReadinessCheck{}
	)

	// Session database
	if cfg.DBEnabled {
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&models.ShopSession{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		sessionRepo = repository.NewSessionRepository(db)
		sources = append(sources, sessionRepo)
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		log.Println("✓ Session database ready")
	}

	// GCP Secret Manager
	if cfg.UseGCPSecretManager {
		secretManager, err := secrets.NewGCPSecretManager(context.Background(), cfg.GCPProjectID)
		if err != nil {
			log.Printf("Warning: Failed to initialize GCP Secret Manager: %v", err)
		} else {
			defer secretManager.Close()
			// Secret Manager wins over the session table
			sources = append([]services.CredentialSource{secretManager}, sources...)
			log.Println("✓ GCP Secret Manager initialized")
		}
	}
	if len(sources) == 0 {
		log.Fatal("No credential source available")
	}

	// NATS event publisher (optional)
	var publisher services.EventPublisher
	if cfg.NATSURL != "" {
		eventPublisher, err := events.NewBulkEventPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("Warning: Failed to initialize NATS event publisher: %v", err)
			log.Println("Continuing without event publishing...")
		} else {
			defer eventPublisher.Close()
			publisher = eventPublisher
			checks["nats"] = func(context.Context) error {
				if !eventPublisher.IsConnected() {
					return errors.New("disconnected")
				}
				return nil
			}
			log.Println("✓ Connected to NATS JetStream for event publishing")
		}
	} else {
		log.Println("NATS_URL not configured, event publishing disabled")
	}

	provider := services.NewShopifyDirectoryProvider(shopifyConfig(cfg), logger, sources...)
	bulkService := services.NewBulkInventoryService(services.NewReconciliationEngine(logger), publisher, logger)

	inventoryHandler := handlers.NewInventoryHandler(bulkService, provider, cfg.MaxUploadBytes, logger)
	healthHandler := handlers.NewHealthHandler(checks)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.ShopMiddleware())

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api/v1")
	{
		shopScoped := api.Group("", middleware.RequireShop())
		shopScoped.GET("/locations", inventoryHandler.ListLocations)
		shopScoped.GET("/inventory/export", inventoryHandler.ExportInventory)
		shopScoped.POST("/inventory/import", inventoryHandler.ImportInventory)

		if sessionRepo != nil && cfg.SessionAPIKey != "" {
			sessionHandler := handlers.NewSessionHandler(sessionRepo, logger)
			sessions := api.Group("/sessions", middleware.RequireAPIKey(cfg.SessionAPIKey))
			sessions.PUT("/:shop", sessionHandler.UpsertSession)
			sessions.DELETE("/:shop", sessionHandler.DeleteSession)
		} else if sessionRepo != nil {
			logger.Warn("SESSION_API_KEY not set, session routes are disabled")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithField("port", cfg.Port).Info("Bulk inventory service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	logger.Info("Shutting down bulk-inventory-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Bulk inventory service stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}
	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ignoring LOG_LEVEL %q: %v\n", cfg.LogLevel, err)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

func shopifyConfig(cfg *config.Config) shopify.Config {
	sc := shopify.DefaultConfig()
	sc.APIVersion = cfg.ShopifyAPIVersion
	sc.Timeout = cfg.ShopifyTimeout
	sc.RequestsPerSecond = cfg.ShopifyRateLimit
	sc.PageSize = cfg.ShopifyPageSize

	retry := clients.DefaultRetryConfig()
	retry.MaxRetries = cfg.ShopifyMaxRetries
	sc.Retry = retry
	return sc
}
