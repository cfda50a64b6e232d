package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
	"google.golang.org/grpc"

	"github.com/comings/prepaid-api/internal/adapter/gateway"
	"github.com/comings/prepaid-api/internal/adapter/handler"
	"github.com/comings/prepaid-api/internal/adapter/storage"
	"github.com/comings/prepaid-api/internal/adapter/storage/memory"
	"github.com/comings/prepaid-api/internal/auth"
	"github.com/comings/prepaid-api/internal/config"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

const (
	gatewayTimeout  = 10 * time.Second
	eventTimeout    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	loginPerMinute  = 10
	loginBurst      = 5
)

// repositories groups the storage ports; both drivers fill every field.
type repositories struct {
	shops     port.ShopRepository
	customers port.CustomerRepository
	ledger    port.LedgerRepository
	menus     port.MenuRepository
	subs      port.SubscriptionRepository
	cache     port.CacheRepository
	closers   []io.Closer
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range repos.closers {
			if err := c.Close(); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
		logger.Info("connections closed")
	}()

	client := gateway.NewHTTPClient(gatewayTimeout)

	var notifier port.Notifier = gateway.NewLogNotifier(logger)
	if cfg.Solapi.Enabled() {
		notifier = gateway.NewSolapiNotifier("", cfg.Solapi.APIKey, cfg.Solapi.APISecret, cfg.Solapi.Sender, client)
	}

	eventHandlers := []port.EventHandler{service.NewNotificationHandler(repos.shops, notifier, logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := gateway.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		repos.closers = append(repos.closers, kafka)
		eventHandlers = append(eventHandlers, kafka)
		logger.Info("kafka event sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	dispatcher := service.NewEventDispatcher(cfg.QueueSize, logger, eventHandlers...)

	var registry port.BusinessRegistry
	if cfg.NTSAPIKey != "" {
		registry = gateway.NewNTSClient("", cfg.NTSAPIKey, client)
	}

	var providers []port.OAuthProvider
	if cfg.Naver.Enabled() {
		providers = append(providers, gateway.NewNaverProvider(cfg.Naver.ClientID, cfg.Naver.ClientSecret, cfg.Naver.RedirectURI, gateway.NaverEndpoints, client))
	}
	if cfg.Kakao.Enabled() {
		providers = append(providers, gateway.NewKakaoProvider(cfg.Kakao.ClientID, cfg.Kakao.ClientSecret, cfg.Kakao.RedirectURI, gateway.KakaoEndpoints, client))
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	subscriptions := service.NewSubscriptionService(
		repos.subs, repos.shops, repos.cache,
		gateway.NewTossClient("", cfg.Toss.SecretKey, client),
		dispatcher,
		service.SubscriptionConfig{
			MonthlyPrice:  cfg.Subscription.MonthlyPrice,
			TrialDays:     cfg.Subscription.TrialDays,
			GraceDays:     cfg.Subscription.GraceDays,
			TossClientKey: cfg.Toss.ClientKey,
		},
		logger,
	)
	customers := service.NewCustomerService(repos.customers, logger)
	services := handler.Services{
		Auth:         service.NewAuthService(repos.shops, repos.cache, tokens, subscriptions, gateway.NewNiceVerifier(cfg.NICEMode), logger, providers...),
		Pins:         service.NewPinService(repos.shops, repos.cache, cfg.PinGateEnforced, logger),
		Customers:    customers,
		Ledger:       service.NewLedgerService(repos.ledger, repos.customers, repos.cache, dispatcher, logger),
		Dashboard:    service.NewDashboardService(repos.ledger, repos.customers),
		Menus:        service.NewMenuService(repos.menus),
		Onboarding:   service.NewOnboardingService(repos.shops, repos.menus, repos.customers, customers, registry, logger),
		Subscription: subscriptions,
	}

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, dispatcher, logger)
		}(i)
	}
	logger.Info("started event workers", "count", cfg.WorkerCount)

	scheduler := cron.New(cron.WithLocation(domain.Seoul), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.SchedulerSpec, func() {
		if _, err := subscriptions.Sweep(ctx); err != nil {
			logger.Error("subscription sweep aborted", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule subscription sweep: %w", err)
	}
	scheduler.Start()
	logger.Info("subscription sweep scheduled", "spec", cfg.SchedulerSpec)

	limiter := handler.NewRateLimiter(loginPerMinute, loginBurst, logger)
	limiter.StartCleanup(ctx, 10*time.Minute)

	// gRPC server
	grpcHandler := handler.NewGRPCHandler(services, logger)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcHandler.AuthInterceptor))
	handler.RegisterLedgerServer(grpcServer, grpcHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(services, logger)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpHandler.Routes(handler.RouterConfig{
			CORSOrigins: append([]string{cfg.FrontendURL}, cfg.CORSOrigins...),
			Development: cfg.IsDevelopment(),
			Limiter:     limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	<-scheduler.Stop().Done()
	cancel()

	// Close event queue and wait for workers
	dispatcher.Close()
	wg.Wait()
	logger.Info("workers stopped")
	return nil
}

func openRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, error) {
	if cfg.StorageDriver == "memory" {
		store := memory.New()
		logger.Warn("using in-memory storage; data is lost on restart")
		return repositories{
			shops: store, customers: store, ledger: store, menus: store, subs: store, cache: store,
		}, nil
	}

	dsn, err := storage.NormalizeDSN(cfg.MySQLDSN)
	if err != nil {
		return repositories{}, err
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return repositories{}, fmt.Errorf("connect mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("connected to mysql")

	if err := storage.Migrate(db.DB); err != nil {
		db.Close()
		return repositories{}, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 100,
	})
	cache := storage.NewRedisAdapter(rdb)
	if err := cache.Ping(ctx); err != nil {
		rdb.Close()
		db.Close()
		return repositories{}, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)

	store := storage.NewMySQLAdapter(db)
	return repositories{
		shops:     store,
		customers: store,
		ledger:    store,
		menus:     store,
		subs:      store,
		cache:     cache,
		closers:   []io.Closer{rdb, db},
	}, nil
}

func workerLoop(id int, dispatcher *service.EventDispatcher, logger *slog.Logger) {
	for event := range dispatcher.Queue() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		dispatcher.Handle(ctx, event)
		cancel()
		logger.Debug("event handled", "worker", id, "type", event.Type, "shop_id", logging.ShortID(event.ShopID))
	}
}
