package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"signalhub/configs"
	"signalhub/internal/adapter/market"
	"signalhub/internal/adapter/telegram"
	"signalhub/internal/cache"
	"signalhub/internal/crypto"
	"signalhub/internal/database"
	deliveryhttp "signalhub/internal/delivery/http"
	"signalhub/internal/domain"
	"signalhub/internal/infra"
	"signalhub/internal/metrics"
	"signalhub/internal/middleware"
	"signalhub/internal/repository"
	"signalhub/internal/service"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		stdlog.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Application stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Application exited gracefully")
}

func run(ctx context.Context, cfg *configs.Config, log *logger.Logger) error {
	log.Info("Starting signalhub", logger.String("env", cfg.Server.Env), logger.String("port", cfg.Server.Port))

	db, err := infra.NewDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, log); err != nil {
		return err
	}

	store, closeStore := newStore(ctx, cfg.Redis, log)
	defer closeStore()

	var vault *crypto.Vault
	if cfg.Crypto.EncryptionKey != "" {
		if vault, err = crypto.NewVault(cfg.Crypto.EncryptionKey); err != nil {
			return fmt.Errorf("failed to init credential vault: %w", err)
		}
	} else {
		log.Warn("ENCRYPTION_KEY not set, integration credentials cannot be stored")
	}

	recorder := metrics.New()
	loc := cfg.Location()

	// Repositories
	signalRepo := repository.NewSignalRepository(db)
	userRepo := repository.NewUserRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)
	traderRepo := repository.NewTraderRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	counterRepo := repository.NewSignalCounterRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)

	// Core services
	auditSvc := usecase.NewAuditService(auditRepo, log)
	authSvc := usecase.NewAuthService(userRepo, auditSvc, log)
	settingsSvc := usecase.NewSettingsService(settingsRepo, auditSvc, log)
	integrationSvc := usecase.NewIntegrationService(integrationRepo, vault, auditSvc, log)
	subscriberSvc := usecase.NewSubscriberService(subscriberRepo, auditSvc, log)
	userSvc := usecase.NewUserService(userRepo, auditSvc, log)
	templateSvc := usecase.NewTemplateService(templateRepo, settingsSvc, auditSvc, log)

	if cfg.Bootstrap.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	// Market data: stored binance credentials win over the config
	apiKey, secretKey := cfg.Providers.BinanceAPIKey, cfg.Providers.BinanceSecret
	if k, s, ok, err := integrationSvc.Credentials(ctx, domain.ProviderBinance); err != nil {
		log.Warn("Failed to read binance integration, using config credentials", logger.Error(err))
	} else if ok {
		apiKey, secretKey = k, s
	}
	gateway := market.NewCachedGateway(
		market.NewGateway(cfg.Providers, apiKey, secretKey, recorder, log),
		store, cfg.Redis.PriceTTL, cfg.Redis.FearTTL, log,
	)

	// Bot channel
	var channel domain.BotChannel = telegram.Disabled{}
	var tgChannel *telegram.Channel
	if cfg.Telegram.Enabled() {
		if tgChannel, err = telegram.NewChannel(cfg.Telegram.BotToken); err != nil {
			return err
		}
		channel = tgChannel
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, deliveries will fail")
	}

	fanout := service.NewFanoutService(subscriberRepo, channel, cfg.Telegram.SendRatePerSec, recorder, log)
	renderer := service.NewTemplateRenderer(templateRepo)
	policy := service.NewFollowPolicy(counterRepo, recorder, log)

	signalSvc := usecase.NewSignalService(signalRepo, settingsSvc, renderer, fanout, auditSvc, recorder, log, loc)
	broadcastSvc := usecase.NewBroadcastService(broadcastRepo, fanout, auditSvc, log)
	leaderboardSvc := usecase.NewLeaderboardService(gateway, traderRepo, signalRepo, counterRepo, policy, settingsSvc, signalSvc, auditSvc, log, loc)
	dashboardSvc := usecase.NewDashboardService(signalRepo, subscriberRepo, broadcastRepo, traderRepo)
	marketSvc := usecase.NewMarketService(gateway)
	monitor := usecase.NewPriceMonitor(signalSvc, gateway, log)

	// Scheduler
	scheduler := infra.NewScheduler(recorder, log)
	if err := scheduler.Register(infra.JobLeaderboardRefresh, cfg.Scheduler.LeaderboardRefreshSpec, 5*time.Minute, func(ctx context.Context) error {
		report, err := leaderboardSvc.Refresh(ctx, false)
		if err != nil {
			return err
		}
		if !report.Skipped {
			log.Info("Leaderboard refreshed",
				logger.Int("fetched", report.Fetched),
				logger.Int("followed", report.Followed),
				logger.Int("created", report.Created),
				logger.Int("rejected", report.Rejected),
			)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := scheduler.Register(infra.JobPriceMonitor, cfg.Scheduler.PriceMonitorSpec, time.Minute, func(ctx context.Context) error {
		_, err := monitor.CheckSignals(ctx)
		return err
	}); err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	// HTTP API
	jwtManager := middleware.NewJWTManager(cfg.Auth)
	checks := map[string]deliveryhttp.Pinger{"postgres": deliveryhttp.PingFunc(db.Ping)}
	if pinger, ok := store.(deliveryhttp.Pinger); ok {
		checks["redis"] = pinger
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	deliveryhttp.SetupRoutes(e, &deliveryhttp.RouterConfig{
		JWT:              jwtManager,
		Logger:           log,
		RequestTimeout:   cfg.Server.RequestTimeout,
		AuthHandler:      deliveryhttp.NewAuthHandler(authSvc, jwtManager, cfg.Server.Env == "production", log),
		SignalHandler:    deliveryhttp.NewSignalHandler(signalSvc, log),
		FuturesHandler:   deliveryhttp.NewFuturesHandler(settingsSvc, leaderboardSvc, log),
		BroadcastHandler: deliveryhttp.NewBroadcastHandler(broadcastSvc, log),
		TemplateHandler:  deliveryhttp.NewTemplateHandler(templateSvc, log),
		MarketHandler:    deliveryhttp.NewMarketHandler(marketSvc, log),
		AdminHandler:     deliveryhttp.NewAdminHandler(subscriberSvc, integrationSvc, auditSvc, dashboardSvc, checks, log),
		UserHandler:      deliveryhttp.NewUserHandler(userSvc, log),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	var servers []*http.Server
	servers = append(servers, srv)
	if cfg.Metrics.Enabled {
		opsChecks := map[string]infra.Check{}
		for name, p := range checks {
			opsChecks[name] = p.Ping
		}
		servers = append(servers, infra.NewOpsServer(infra.OpsServerConfig{
			Addr:    cfg.Metrics.Addr,
			Metrics: recorder.Handler(),
			Checks:  opsChecks,
			Jobs:    scheduler,
			Logger:  log,
		}))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			log.Info("HTTP server listening", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", s.Addr, err)
			}
			return nil
		})
	}

	if tgChannel != nil {
		bot := telegram.NewBot(subscriberSvc, signalSvc, marketSvc, store, cfg.Telegram.CommandsPerMin, log)
		g.Go(func() error {
			return bot.Run(gctx, tgChannel.API(), cfg.Telegram.PollTimeoutSecs)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", logger.String("addr", s.Addr), logger.Error(err))
			}
		}
		return nil
	})

	return g.Wait()
}

// newStore connects to Redis when enabled and falls back to an in-process store.
func newStore(ctx context.Context, cfg configs.RedisConfig, log *logger.Logger) (cache.Store, func()) {
	if cfg.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg)
		if err == nil {
			log.Info("Redis connected", logger.String("addr", cfg.Addr))
			return rc, func() { _ = rc.Close() }
		}
		log.Warn("Redis unavailable, using in-memory cache", logger.Error(err))
	}
	mem := cache.NewMemory()
	return mem, func() { _ = mem.Close() }
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
