package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/chiefnavajo/aimoviez-sub005/internal/config"
	"github.com/chiefnavajo/aimoviez-sub005/internal/db"
	"github.com/chiefnavajo/aimoviez-sub005/internal/handler"
	"github.com/chiefnavajo/aimoviez-sub005/internal/identity"
	"github.com/chiefnavajo/aimoviez-sub005/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
	"github.com/chiefnavajo/aimoviez-sub005/internal/router"
	"github.com/chiefnavajo/aimoviez-sub005/internal/service"
)

func main() {
	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "aimoviez-vote")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Repositories
	voteRepo := repository.NewVoteRepo(pool)
	clipRepo := repository.NewClipRepo(pool)
	slotRepo := repository.NewSlotRepo(pool)
	flagRepo := repository.NewFlagRepo(pool)

	// Fast path degrades to durable-only when Redis is unreachable.
	fast := service.NewFastPath(cfg.RedisURL, log.Logger)
	defer fast.Close()

	breaker := service.NewBreaker(service.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		HalfOpenMax:      cfg.BreakerHalfOpenMax,
	})

	handler.InitMetrics(pool, func() float64 {
		qctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		depth, err := fast.QueueDepth(qctx)
		if err != nil {
			return 0
		}
		return float64(depth)
	})

	breaker.OnStateChange(func(from, to service.BreakerState) {
		log.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("vote breaker state change")
		handler.Metrics.BreakerState.Set(float64(to))
	})

	// Services
	counter := service.NewCounterService(fast.Client())
	fanout := service.NewFanoutService(fast.Client(), service.LogNotifier{Log: log.Logger}, log.Logger)
	flags := service.NewFlagService(flagRepo, 0, log.Logger)
	resolver := identity.NewResolver(cfg.IdentitySalt)

	voteSvc := service.NewVoteService(voteRepo, clipRepo, slotRepo,
		fast, counter, breaker, fanout, flags, nil,
		service.VoteConfig{
			DailyLimit:   cfg.DailyVoteLimit,
			FreezeWindow: cfg.FreezeWindow,
			MultiVote:    cfg.MultiVoteMode,
		}, log.Logger)
	seasonSvc := service.NewSeasonService(slotRepo, clipRepo, fast, counter,
		fanout, flags, cfg.VotingDuration, log.Logger)
	bulkSvc := service.NewBulkService(clipRepo, fast, fanout, log.Logger)

	// Background ledger worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	worker := service.NewLedgerWorker(voteRepo, slotRepo, clipRepo, fast, log.Logger)
	worker.OnApplied = handler.Metrics.LedgerApplied.Inc
	worker.OnDeadLetter = handler.Metrics.LedgerDeadLetter.Inc
	go worker.Start(workerCtx)

	app := fiber.New(fiber.Config{
		AppName:      "aiMoviez Vote API",
		ServerHeader: "aiMoviez",
	})

	router.Setup(app, &router.Handlers{
		Vote:   handler.NewVoteHandler(voteSvc, resolver),
		Admin:  handler.NewAdminHandler(seasonSvc, bulkSvc),
		Health: handler.NewHealthHandler(pool, fast.Client(), breaker, fast),
	}, cfg.CORSOrigins, cfg.AdminKey)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		stopWorker()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Environment).
		Msg("vote backend starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
