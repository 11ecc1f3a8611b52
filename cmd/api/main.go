package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/app"
	"github.com/bivex/paygate/internal/application/command"
	"github.com/bivex/paygate/internal/application/middleware"
	"github.com/bivex/paygate/internal/application/query"
	"github.com/bivex/paygate/internal/infrastructure/config"
	"github.com/bivex/paygate/internal/infrastructure/logging"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
	"github.com/bivex/paygate/internal/interfaces/http/handlers"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting payment API server")

	ctx := context.Background()
	services, err := app.New(ctx, cfg)
	if err != nil {
		logging.Logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// Initialize middleware
	jwtMiddleware := middleware.NewJWTMiddleware(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		services.Redis,
		cfg.JWT.AccessTTL,
		logging.WithComponent("auth"),
	)
	rateLimiter := middleware.NewRateLimiter(services.Redis, true, logging.WithComponent("rate_limiter"))

	// Initialize commands and queries
	createChargeCmd := command.NewCreateChargeCommand(services.Facade)
	cancelSubscriptionCmd := command.NewCancelSubscriptionCommand(services.Facade)
	chargeSubscriptionCmd := command.NewChargeSubscriptionCommand(services.Billing)
	refundChargeCmd := command.NewRefundChargeCommand(services.Facade)
	getTransactionQuery := query.NewGetTransactionQuery(services.Ledger)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(services.Reconciler)
	chargeHandler := handlers.NewChargeHandler(createChargeCmd, getTransactionQuery)
	subscriptionHandler := handlers.NewSubscriptionHandler(cancelSubscriptionCmd)
	adminHandler := handlers.NewAdminHandler(chargeSubscriptionCmd, refundChargeCmd, services.Dispatcher)

	// Setup Gin router
	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logging.Logger),
		metrics.Middleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhook routes (no auth, verified by signature or secret token)
	webhooks := router.Group("/webhook")
	webhooks.Use(rateLimiter.Middleware(middleware.ByIP, middleware.WebhookConfig))
	{
		webhooks.POST("/card", webhookHandler.CardWebhook)
		webhooks.POST("/telegram", webhookHandler.TelegramWebhook)
	}

	// API v1 routes (require JWT)
	v1 := router.Group("/v1")
	v1.Use(
		jwtMiddleware.Authenticate(),
		rateLimiter.Middleware(middleware.ByUserID, middleware.APIConfig),
	)
	{
		v1.POST("/charges", chargeHandler.CreateCharge)
		v1.GET("/charges/:id", chargeHandler.GetCharge)
		v1.DELETE("/subscriptions/:id", subscriptionHandler.CancelSubscription)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/subscriptions/:id/charge", adminHandler.ChargeSubscription)
			admin.POST("/billing/sweep", adminHandler.TriggerSweep)
			admin.POST("/transactions/:id/refund", adminHandler.RefundTransaction)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		logging.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Server exited")
}
