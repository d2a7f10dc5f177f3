package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/client"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/config"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/event"
	handler "github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/handler/http"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository/postgres"
	redisrepo "github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository/redis"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/service"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/migrations"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/health"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httpclient"
	pkgkafka "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/kafka"
)

// App wires together all dependencies and runs the loyalty engine.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *redis.Client
	producer   *pkgkafka.Producer
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Initialize Redis client for settlement credit claims.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Repositories.
	offerRepo := postgres.NewOfferRepository(pool)
	voucherRepo := postgres.NewVoucherRepository(pool)
	redemptionRepo := postgres.NewRedemptionRepository(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)
	cashbackRepo := postgres.NewCashbackRepository(pool)
	claimStore := redisrepo.NewClaimStore(rdb)

	// Upstream service clients share one pooled HTTP client.
	httpClient := httpclient.New(httpclient.DefaultConfig())
	orderClient := client.NewOrderClient(httpClient, cfg.OrderServiceURL, cfg.InternalToken)
	walletClient := client.NewWalletClient(httpClient, cfg.WalletServiceURL, cfg.InternalToken)
	storeClient := client.NewStoreClient(httpClient, cfg.StoreServiceURL, cfg.InternalToken)

	// Services.
	eventProducer := event.NewProducer(producer, logger)
	applicability := service.NewApplicability(logger)
	offerService := service.NewOfferService(
		offerRepo, voucherRepo, redemptionRepo, orderClient, storeClient,
		applicability, eventProducer, logger,
	)
	campaignService := service.NewCampaignService(
		campaignRepo, cashbackRepo, offerRepo, voucherRepo, walletClient,
		eventProducer, logger,
	)
	settlementService := service.NewSettlementService(
		campaignRepo, cashbackRepo, voucherRepo, orderClient, walletClient,
		claimStore, eventProducer, logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	// HTTP router.
	router := handler.NewRouter(
		offerService, campaignService, settlementService,
		healthHandler, cfg.InternalToken, logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		rdb:        rdb,
		producer:   producer,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
