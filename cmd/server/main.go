package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/config"
	"github.com/bisonbooks/backend/internal/database"
	"github.com/bisonbooks/backend/internal/jobs"
	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/routes"
	"github.com/bisonbooks/backend/internal/services/payment/providers/paystack"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()
	utils.ConfigureLogger(cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Redis only backs the cache and the sweep lock, so run without it if unreachable
	var cache billing.SubscriptionCache
	var sweepLock *jobs.RedisLock
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		utils.Logger.WithError(err).Warn("Redis unavailable, subscription cache and sweep lock disabled")
	} else {
		cache = billing.NewRedisSubscriptionCache(redisClient, cfg.Billing.CacheTTL)
		sweepLock = jobs.NewRedisLock(redisClient, jobs.SweepLockKey, cfg.Billing.SweepInterval)
	}
	cancelPing()

	// Initialize payment provider
	paystackProvider := paystack.NewPaystackProvider(paystack.PaystackConfig{
		SecretKey: cfg.Paystack.SecretKey,
		PublicKey: cfg.Paystack.PublicKey,
		BaseURL:   cfg.Paystack.BaseURL,
	})

	// Initialize billing service
	billingService := billing.NewService(billing.NewGormStore(db), paystackProvider, billing.Options{
		Currency:       models.Currency(cfg.Paystack.Currency),
		CallbackURL:    cfg.Paystack.CallbackURL,
		YearlyDiscount: cfg.Billing.YearlyDiscount,
		Cache:          cache,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig()))

	// Setup routes
	routes.SetupRoutes(router, routes.Dependencies{
		DB:          db,
		Billing:     billingService,
		Paystack:    paystackProvider,
		JWTSecret:   cfg.JWT.Secret,
		CronSecret:  cfg.Billing.CronSecret,
		RateLimiter: rateLimiter,
	})

	// Schedule the in-process expiry sweep
	var sweepJob *jobs.ExpirySweepJob
	if cfg.Billing.SweepEnabled {
		sweepJob = jobs.NewExpirySweepJob(billingService, sweepLock, cfg.Billing.SweepInterval)
		if err := sweepJob.Start(); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to schedule subscription sweep")
		}
	}

	// Start server
	srv := startServer(router, cfg.Server)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("Shutting down server...")

	if sweepJob != nil {
		sweepJob.Stop()
	}

	// Create a deadline to wait for
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.WithError(err).Error("Server forced to shutdown")
	}

	if err := redisClient.Close(); err != nil {
		utils.Logger.WithError(err).Warn("Failed to close redis client")
	}

	utils.Logger.Info("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	utils.Logger.WithField("port", cfg.Port).Info("Server started")
	return srv
}
