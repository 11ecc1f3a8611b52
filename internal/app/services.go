// Package app wires the billing services shared by the API, the worker and
// billingctl.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/infrastructure/cache"
	"github.com/bivex/paygate/internal/infrastructure/config"
	"github.com/bivex/paygate/internal/infrastructure/external/cardgateway"
	"github.com/bivex/paygate/internal/infrastructure/external/telegram"
	"github.com/bivex/paygate/internal/infrastructure/logging"
	"github.com/bivex/paygate/internal/infrastructure/persistence/pool"
	"github.com/bivex/paygate/internal/infrastructure/persistence/repository"
	"github.com/bivex/paygate/internal/worker/tasks"
)

// Services holds the wired service graph
type Services struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	TaskClient *asynq.Client
	Dispatcher *tasks.Dispatcher
	Users      *repository.UserRepositoryImpl
	Telegram   *telegram.Client
	Ledger     *service.LedgerService
	Facade     *service.GatewayFacade
	Reconciler *service.ReconcilerService
	Billing    *service.BillingService
}

// New connects to PostgreSQL and Redis and builds every service
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	dbPool, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx, dbPool); err != nil {
		pool.Close(dbPool)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		pool.Close(dbPool)
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisOpts.PoolSize = cfg.Redis.PoolSize
	redisOpts.MinIdleConns = cfg.Redis.MinIdleConns
	redisOpts.DialTimeout = cfg.Redis.DialTimeout
	redisOpts.ReadTimeout = cfg.Redis.ReadTimeout
	redisOpts.WriteTimeout = cfg.Redis.WriteTimeout
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close(dbPool)
		redisClient.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	taskClient := asynq.NewClientFromRedisClient(redisClient)
	dispatcher := tasks.NewDispatcher(taskClient)

	policy := service.BillingPolicy{
		MaxFailedAttempts: cfg.Billing.MaxFailedAttempts,
		RetryDelay:        cfg.Billing.RetryDelay,
		BatchSize:         cfg.Billing.SweepBatchSize,
		ChargeTimeout:     cfg.Billing.ChargeTimeout,
		RefundWindow:      cfg.Billing.RefundWindow,
	}

	txManager := repository.NewTxManager(dbPool)
	transactions := repository.NewTransactionRepository(dbPool)
	subscriptions := repository.NewSubscriptionRepository(dbPool)
	grants := repository.NewBenefitGrantRepository(dbPool)
	users := repository.NewUserRepository(dbPool)
	products := cache.NewProductCache(
		repository.NewProductRepository(dbPool),
		redisClient,
		logging.WithComponent("product_cache"),
	)

	cardClient := cardgateway.NewClient(cardgateway.Config{
		BaseURL:         cfg.CardGateway.BaseURL,
		TerminalKey:     cfg.CardGateway.TerminalKey,
		Password:        cfg.CardGateway.Password,
		NotificationURL: cfg.CardGateway.NotificationURL,
		Timeout:         cfg.CardGateway.Timeout,
	}, logging.WithComponent("card_gateway"))
	telegramClient := telegram.NewClient(telegram.Config{
		APIBaseURL: cfg.Telegram.APIBaseURL,
		BotToken:   cfg.Telegram.BotToken,
		Timeout:    cfg.Telegram.Timeout,
	}, logging.WithComponent("telegram"))

	notifications := service.NewNotificationService(dispatcher, logging.WithComponent("notifications"))
	ledger := service.NewLedgerService(
		txManager,
		transactions,
		subscriptions,
		grants,
		products,
		notifications,
		policy,
		logging.WithComponent("ledger"),
	)
	facade := service.NewGatewayFacade(
		ledger,
		products,
		subscriptions,
		users,
		cardClient,
		telegramClient,
		service.CardReturnURLs{SuccessURL: cfg.CardGateway.SuccessURL, FailURL: cfg.CardGateway.FailURL},
		cfg.Billing.RefundWindow,
		logging.WithComponent("gateway_facade"),
	)
	reconciler := service.NewReconcilerService(
		ledger,
		products,
		telegramClient,
		cfg.CardGateway.Password,
		cfg.Telegram.WebhookSecret,
		logging.WithComponent("reconciler"),
	)
	billing := service.NewBillingService(ledger, facade, subscriptions, products, policy, logging.WithComponent("billing"))

	return &Services{
		DB:         dbPool,
		Redis:      redisClient,
		TaskClient: taskClient,
		Dispatcher: dispatcher,
		Users:      users,
		Telegram:   telegramClient,
		Ledger:     ledger,
		Facade:     facade,
		Reconciler: reconciler,
		Billing:    billing,
	}, nil
}

// Close releases the connections held by the services
func (s *Services) Close() {
	if err := s.TaskClient.Close(); err != nil {
		logging.Logger.Warn("Failed to close task client", zap.Error(err))
	}
	if err := s.Redis.Close(); err != nil {
		logging.Logger.Warn("Failed to close redis", zap.Error(err))
	}
	pool.Close(s.DB)
}
