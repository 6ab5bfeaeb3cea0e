package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caresync/booking-engine/internal/config"
	"github.com/caresync/booking-engine/internal/db"
	"github.com/caresync/booking-engine/internal/notification"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "notify-worker").Logger()
	log.Info().Msg("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running notification worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	outbox := notification.NewPgOutbox(pgPool)
	sender := notification.NewLogSender(log)
	worker := notification.NewWorker(outbox, sender, log)

	// Run once at startup
	runOnce(rootCtx, worker, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping notify-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, worker, log)
		}
	}
}

func runOnce(ctx context.Context, worker *notification.Worker, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := worker.RunOnce(runCtx); err != nil {
		log.Error().Err(err).Msg("notification run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("notification run complete")
}
