package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/database"
	"github.com/fitforge/wearable-sync-go/internal/fitbit"
	"github.com/fitforge/wearable-sync-go/internal/garmin"
	"github.com/fitforge/wearable-sync-go/internal/handler"
	"github.com/fitforge/wearable-sync-go/internal/jobs"
	"github.com/fitforge/wearable-sync-go/internal/middleware"
	"github.com/fitforge/wearable-sync-go/internal/redis"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/service"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	cipher, err := util.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}
	signer := util.NewStateSigner(cfg.StateSigningSecret, config.StateTokenTTL)

	userRepo := repository.NewUserRepository(db.DB)
	connRepo := repository.NewConnectionRepository(db.DB)
	metricRepo := repository.NewMetricRepository(db.DB)
	syncLogRepo := repository.NewSyncLogRepository(db.DB)

	garminClient := garmin.NewClient(cfg.GarminConsumerKey, cfg.GarminConsumerSecret, config.ProviderHTTPTimeout)
	fitbitClient := fitbit.NewClient(cfg.FitbitClientID, cfg.FitbitClientSecret, cfg.FitbitCallbackURL, config.ProviderHTTPTimeout)

	rewards := service.NewRewardService(db, userRepo, metricRepo)
	tokenIndex := service.NewTokenIndex(redisClient, connRepo, cipher, cfg.StateSigningSecret)
	connService := service.NewConnectionService(
		[]service.Flow{
			service.NewGarminFlow(garminClient, cfg.GarminCallbackURL),
			service.NewFitbitFlow(fitbitClient),
		},
		connRepo, syncLogRepo, rewards, tokenIndex, cipher, signer, cfg.ReconnectBonus,
	)
	webhookService := service.NewWebhookService(tokenIndex, connRepo, metricRepo, syncLogRepo, rewards)
	syncService := service.NewSyncService(
		fitbitClient, connRepo, metricRepo, syncLogRepo, rewards, cipher,
		service.NewRedisLocker(redisClient),
	)
	importService := service.NewImportService(metricRepo, syncLogRepo, rewards)

	authMiddleware := middleware.Auth(userRepo)
	cronMiddleware := middleware.CronAuth(cfg.CronSecret)

	wearableHandler := handler.NewWearableHandler(connService, cfg.AppBaseURL)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	syncHandler := handler.NewSyncHandler(syncService)
	importHandler := handler.NewImportHandler(importService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/webhooks/garmin", func(r chi.Router) {
		r.Post("/", webhookHandler.Receive)
		r.Post("/deregister", webhookHandler.Deregister)
	})

	r.Route("/v1/wearables", func(r chi.Router) {
		// Provider redirects carry no bearer token; the signed state cookie
		// is the callback's authentication.
		r.Get("/{provider}/callback", wearableHandler.Callback)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/", wearableHandler.List)
			r.Get("/log", wearableHandler.Log)
			r.Get("/{provider}/authorize", wearableHandler.Authorize)
			r.Delete("/{provider}", wearableHandler.Disconnect)
		})
	})

	r.Route("/v1/import", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", importHandler.Import)
	})

	r.Route("/v1/sync", func(r chi.Router) {
		r.Use(cronMiddleware)
		r.Post("/run", syncHandler.Run)
	})

	cleanupJob := jobs.NewCleanupJob(syncLogRepo)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	if cfg.SyncIntervalMinutes > 0 {
		syncJob := jobs.NewSyncJob(syncService, cfg.SyncInterval())
		syncJob.Start()
		defer syncJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
