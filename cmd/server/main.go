package main

import (
	"chatwidget-gateway/internal/api"
	"chatwidget-gateway/internal/backend"
	"chatwidget-gateway/internal/config"
	"chatwidget-gateway/internal/crypto"
	"chatwidget-gateway/internal/handlers"
	"chatwidget-gateway/internal/logging"
	"chatwidget-gateway/internal/notify"
	"chatwidget-gateway/internal/services"
	"chatwidget-gateway/internal/session"
	"chatwidget-gateway/internal/store"
	"chatwidget-gateway/internal/store/memory"
	"chatwidget-gateway/internal/store/postgres"
	redisstore "chatwidget-gateway/internal/store/redis"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting chat widget gateway", zap.String("env", cfg.AppEnv), zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close session store", zap.Error(err))
		}
	}()

	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, nil, logger)

	opts := session.Options{
		Greeting:     cfg.Greeting,
		User:         cfg.BookingUser,
		CalendarID:   cfg.BookingCalendarID,
		Timezone:     cfg.BookingTimezone,
		QuickActions: cfg.QuickActions,
		Logger:       logger,
	}
	if n := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID, logger); n != nil {
		opts.Notifier = n
		logger.Info("slack lead notifications enabled", zap.String("channel", cfg.SlackChannelID))
	}

	manager := session.NewManager(st, client, opts)
	go manager.RunCleanup(ctx, session.DefaultCleanupInterval, cfg.SessionIdleTTL)

	limiter := api.NewRateLimiter(cfg.RateLimitPerMinute)
	go limiter.RunCleanup(ctx, session.DefaultCleanupInterval, api.DefaultLimiterIdle, logger)

	widgetService := services.NewWidgetService(manager, cfg.SessionSecret, cfg.TokenExpiration, client.HubSpotAuthURL(), logger)
	router := api.NewRouter(api.RouterDependencies{
		SessionHandler: handlers.NewSessionHandler(widgetService, logger),
		Config:         cfg,
		Logger:         logger,
		RateLimiter:    limiter,
	})

	// a chat turn can chain two backend calls
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.BackendTimeout*3 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not listen", zap.String("port", cfg.HTTPPort), zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server shutdown complete")
}

// openStore builds the session store selected by STORE_BACKEND.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	var sealer *crypto.Sealer
	if cfg.EncryptionKey != nil {
		s, err := crypto.NewSealer(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		sealer = s
	}
	codec := store.NewCodec(sealer)

	switch cfg.StoreBackend {
	case config.StorePostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to create database connection pool: %w", err)
		}
		if err := pool.Ping(dbCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("unable to ping database: %w", err)
		}
		pg := postgres.NewPostgresStore(pool, codec, logger)
		if err := pg.EnsureSchema(dbCtx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		logger.Info("postgres session store ready")
		return pg, nil
	case config.StoreRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("redis session store ready", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SessionTTL))
		return redisstore.NewRedisStore(client, codec, cfg.SessionTTL), nil
	default:
		logger.Warn("using in-memory session store; sessions are lost on restart")
		return memory.NewMemoryStore(), nil
	}
}
