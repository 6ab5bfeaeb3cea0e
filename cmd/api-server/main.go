package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caresync/booking-engine/internal/api"
	"github.com/caresync/booking-engine/internal/approval"
	"github.com/caresync/booking-engine/internal/availability"
	"github.com/caresync/booking-engine/internal/booking"
	"github.com/caresync/booking-engine/internal/config"
	"github.com/caresync/booking-engine/internal/db"
	"github.com/caresync/booking-engine/internal/notification"
	redisclient "github.com/caresync/booking-engine/internal/redis"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	// Notifications go through the outbox; the notify-worker delivers them.
	outbox := notification.NewPgOutbox(pgPool)
	gateway := notification.NewOutboxGateway(outbox, log)

	approvalRepo := approval.NewPgRepository(pgPool)
	approvalSvc := approval.NewService(approvalRepo, notification.NewApprovalNotifier(gateway), log)

	availabilityRepo := availability.NewPgRepository(pgPool)
	calc := availability.NewCalculator(availabilityRepo, approvalSvc, cfg.SlotDuration)

	locker := redisclient.NewRedisReservationLocker(rdb, cfg.LockTTL)
	bookingRepo := booking.NewPgRepository(pgPool)
	bookingSvc := booking.NewService(bookingRepo, availabilityRepo, calc, approvalSvc, locker,
		notification.NewAppointmentNotifier(gateway), log)

	router := api.NewRouter(api.RouterConfig{
		Booking:    bookingSvc,
		Approval:   approvalSvc,
		Calculator: calc,
		PgPool:     pgPool,
		Redis:      rdb,
		Logger:     log,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
}
