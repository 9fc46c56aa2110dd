package main

import (
	"context"
	"time"

	"closetai/dbhelper"
	"closetai/services"
	"closetai/store"
	"closetai/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func runScheduler(cfg services.Config) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.BrokerAddress}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	schedule := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "0 7 * * *", // 07:00 daily
			task: tasks.NewDailyOutfitsTask(),
			desc: "Daily outfit suggestions",
		},
	}

	for _, t := range schedule {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatal().Err(err).Str("task", t.desc).Msg("Failed to register task")
		}
		log.Info().Str("task", t.desc).Str("entry_id", entryID).Str("cron", t.cron).Msg("Registered task")
	}

	log.Info().Msg("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatal().Err(err).Msg("Scheduler failed")
	}
}

func orchestrator(router services.ModelGateway, models []string, name string) *services.FallbackOrchestrator {
	o, err := services.NewFallbackOrchestrator(router, models)
	if err != nil {
		log.Fatal().Err(err).Str("list", name).Msg("model list")
	}
	return o
}

func main() {
	cfg, err := services.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	services.SetupLogging(cfg.Env)

	if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env, Release: "closetai@1.0.0"}); err != nil {
		log.Fatal().Err(err).Msg("sentry.Init")
	}
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
	photoStore, err := services.NewR2PhotoStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("[Queue] Failed to initialize photo storage")
	}
	weather, err := services.NewCachedWeather(services.NewOpenMeteoClient(cfg.WeatherBaseURL))
	if err != nil {
		log.Fatal().Err(err).Msg("weather cache")
	}

	var pusher services.PusherProvider = services.NoopPusher{}
	if cfg.PushEnabled {
		app, err := firebase.NewApp(ctx, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("error initializing firebase app")
		}
		pusher = &services.FirebasePusher{App: app, Tokens: st}
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.BrokerAddress})
	defer asynqClient.Close()

	deps := &tasks.Deps{
		Store:      st,
		Outfits:    &services.OutfitGenerator{Orchestrator: orchestrator(router, cfg.OutfitModels, "outfit"), Count: cfg.OutfitCount},
		Insights:   &services.InsightAnalyzer{Orchestrator: orchestrator(router, cfg.InsightModels, "insight")},
		Photos:     &services.PhotoAnalyzer{Orchestrator: orchestrator(router, cfg.PhotoModels, "photo")},
		PhotoStore: photoStore,
		Weather:    weather,
		Pusher:     pusher,
		Enqueuer:   asynqClient,
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.BrokerAddress},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueGenerate: 7,
				tasks.QueueDefault:  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Warn().Err(err).Str("task", task.Type()).Int("retried", retried).Int("max_retry", maxRetry).Msg("[Queue] task failed")
			}),
		},
	)
	mux := asynq.NewServeMux()
	deps.Register(mux)

	go runScheduler(cfg)
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
}
