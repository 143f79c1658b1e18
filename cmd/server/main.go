package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"autotrader/internal/api"
	"autotrader/internal/api/handlers"
	"autotrader/internal/bot"
	"autotrader/internal/cache"
	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/repository"
	"autotrader/internal/service"
	"autotrader/internal/websocket"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

const (
	// notificationRetention - сколько хранить уведомления в БД
	notificationRetention = 30 * 24 * time.Hour
	cleanupInterval       = 6 * time.Hour

	// engineStatusInterval - как часто рассылать состояние сканера подключённым клиентам
	engineStatusInterval = 5 * time.Second
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.Logging.Development,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := initDatabase(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", utils.Err(err))
	}

	// Кулдауны: Redis если задан, иначе память процесса
	var cooldownStore bot.CooldownStore = bot.NewMemoryCooldownStore()
	healthChecks := map[string]handlers.HealthCheck{
		"postgres": db.PingContext,
	}
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisCooldownStore(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, cooldowns kept in memory", utils.Err(err))
		} else {
			defer redisStore.Close()
			cooldownStore = redisStore
			healthChecks["redis"] = redisStore.Ping
			log.Info("cooldowns stored in redis", utils.String("addr", cfg.Redis.Addr))
		}
	}

	// Биржа
	exch, err := exchange.NewExchange(exchange.Config{
		Name:         cfg.Exchange.Name,
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    cfg.Exchange.APISecret,
		Testnet:      cfg.Exchange.Testnet,
		RateLimit:    cfg.Exchange.RateLimit,
		RateBurst:    cfg.Exchange.RateBurst,
		PaperBalance: cfg.Exchange.PaperBalance,
		PaperFeeRate: cfg.Exchange.PaperFeeRate,
	})
	if err != nil {
		log.Fatal("failed to create exchange", utils.Err(err))
	}
	defer exch.Close()
	log.Info("exchange ready", utils.Exchange(exch.GetName()))

	// Инициализация репозиториев
	subscriberRepo := repository.NewSubscriberRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	storage := repository.NewSubscriberStorage(subscriberRepo, tradeRepo)

	// Состояние подписчиков
	store := bot.NewSubscriberStore(cfg.Bot, storage)
	restored, err := bot.NewRecoveryManager(storage, store, cfg.Bot.TradeLogLimit).Recover(ctx)
	if err != nil {
		log.Fatal("failed to restore subscribers", utils.Err(err))
	}
	log.Info("subscribers restored", utils.Int("count", restored))

	cooldowns := bot.NewCooldownTracker(cooldownStore, cfg.Bot.Cooldown)

	// WebSocket hub
	hub := websocket.NewHub()
	hub.SetAllowedOrigins(cfg.Security.AllowedOrigins)
	go hub.Run()

	// Инициализация сервисов
	notificationService := service.NewNotificationService(notificationRepo)
	notificationService.SetWebSocketHub(hub)

	exchangeService := service.NewExchangeService(exch)
	exchangeService.SetWebSocketHub(hub)
	exchangeService.SetCallTimeout(cfg.Bot.CallTimeout)

	subscriberService := service.NewSubscriberService(store, cooldowns, bot.NewRiskLimits(cfg.Bot), tradeRepo)

	// Сканер
	engine := bot.NewEngine(cfg.Bot, exch, store, cooldowns, notificationService)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine stopped", utils.Err(err))
		}
	}()

	go runNotificationCleanup(ctx, notificationService, log)
	go runEngineStatusBroadcast(ctx, engine, hub)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		SubscriberService:   subscriberService,
		NotificationService: notificationService,
		ExchangeService:     exchangeService,
		Engine:              engine,
		Hub:                 hub,
		HealthChecks:        healthChecks,
		APITokenHash:        cfg.Security.APITokenHash,
		AllowedOrigins:      cfg.Security.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	// Текущий тик доигрывается до конца
	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		log.Warn("engine did not stop in time")
	}

	hub.Stop()
	log.Info("server exited")
}

// initDatabase открывает пул и ждёт готовности БД
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	retryCfg := retry.StartupConfig()
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		utils.Warn("database not ready, retrying",
			utils.Int("attempt", attempt), utils.Err(err), utils.String("delay", delay.String()))
	}

	err = retry.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, retryCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runNotificationCleanup удаляет старые уведомления раз в cleanupInterval
func runNotificationCleanup(ctx context.Context, svc *service.NotificationService, log *utils.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CleanupOld(ctx, notificationRetention); err != nil {
				log.Warn("notification cleanup failed", utils.Err(err))
			}
		}
	}
}

// runEngineStatusBroadcast рассылает снимок сканера, пока есть подключённые клиенты
func runEngineStatusBroadcast(ctx context.Context, engine *bot.Engine, hub *websocket.Hub) {
	ticker := time.NewTicker(engineStatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.ClientCount() > 0 {
				hub.BroadcastEngineStatus(engine.Status())
			}
		}
	}
}
