package main

import (
	"context"
	"time"

	"closetai/controllers"
	"closetai/dbhelper"
	"closetai/services"
	"closetai/store"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := services.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	services.SetupLogging(cfg.Env)
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable is not set!")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Env,
		Release:          "closetai@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sentry.Init")
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()
	db := dbhelper.SetupDB()
	rdb := redis.NewClient(&redis.Options{Addr: cfg.BrokerAddress})
	defer rdb.Close()
	st := store.NewGormStore(db, store.NewRedisNotifier(rdb))

	router, err := services.NewModelRouterFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("model router")
	}
	photoOrchestrator, err := services.NewFallbackOrchestrator(router, cfg.PhotoModels)
	if err != nil {
		log.Fatal().Err(err).Msg("photo models")
	}
	photoStore, err := services.NewR2PhotoStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize photo storage")
	}
	urlCache, err := services.NewURLCacheService(photoStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize URL cache service")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.BrokerAddress})
	defer asynqClient.Close()

	e := controllers.SetupServer(controllers.ServerDeps{
		Store:      st,
		Photos:     &services.PhotoAnalyzer{Orchestrator: photoOrchestrator},
		PhotoStore: photoStore,
		URLCache:   urlCache,
		Enqueuer:   asynqClient,
		JWTSecret:  cfg.JWTSecret,
	})
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	log.Info().Str("address", cfg.Address).Strs("photo_models", photoOrchestrator.Models()).Msg("api starting")
	e.Logger.Fatal(e.Start(cfg.Address))
}
