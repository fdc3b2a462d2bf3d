package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"student-progress-bot/internal/config"
	"student-progress-bot/internal/domain/ports/repository"
	"student-progress-bot/internal/infra/dataservice"
	"student-progress-bot/internal/infra/logging"
	"student-progress-bot/internal/infra/memory"
	"student-progress-bot/internal/infra/metrics"
	red "student-progress-bot/internal/infra/redis"
	"student-progress-bot/internal/infra/telegram"
	"student-progress-bot/internal/infra/web"
	"student-progress-bot/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (in-memory conversation store)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Conversation store and per-user locks ----
	var (
		states  repository.StateRepository
		locks   repository.Locker
		limiter *red.RateLimiter
	)
	if cfg.Runtime.Dev && cfg.Redis.URL == "" {
		logger.Warn().Msg("dev mode: conversation state will not survive restarts")
		states = memory.NewStateRepo()
		locks = memory.NewLocker()
	} else {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		states = red.NewStateRepo(redisClient, cfg.Redis.StateTTL)
		locks = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Backend client and dialog engine ----
	data := dataservice.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	dialog := usecase.NewDialogUseCase(states, locks, data, cfg.Backend.Timeout, logger)

	// ---- Telegram ----
	botAdapter, err := telegram.NewRealBotAdapter(&cfg.Bot, dialog, limiter, logger)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Ops server ----
	ops := web.NewServer(cfg.Ops.Port, logger)
	go func() {
		if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	logger.Info().Bool("dev", cfg.Runtime.Dev).Msg("student progress bot started")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown")
	}
	botAdapter.StopPolling()
	logger.Info().Msg("bye")
}
