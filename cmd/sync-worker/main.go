package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/calendar"
	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/config"
	"github.com/giahuylhoang/dental-api/internal/db"
	"github.com/giahuylhoang/dental-api/internal/metrics"
)

// The sync worker drains the calendar mirror retry queue. The appointment
// table is the ground truth; this process converges the external calendar
// onto it.
func main() {
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "sync-worker").
		Logger()
	log.Info().Msg("sync-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.CalendarBaseURL == "" {
		log.Fatal().Msg("CALENDAR_BASE_URL is required for the sync worker")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("configured")

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

	cal := calendar.NewHTTPClient(cfg.CalendarBaseURL, cfg.CalendarToken, cfg.CalendarTimeout, log)
	m := metrics.New(prometheus.NewRegistry())

	repo := clinic.NewPgRepository(pgPool)
	engine := clinic.NewEngine(repo, cal, nil, m, log, clinic.EngineConfig{
		Granularity:     cfg.SlotGranularity,
		Horizon:         cfg.BookingHorizon,
		CalendarTimeout: cfg.CalendarTimeout,
		Location:        cfg.Location(),
	})

	// Run once at startup
	runOnce(rootCtx, engine, cfg.WorkerBatchSize, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, engine, cfg.WorkerBatchSize, log)
		}
	}
}

func runOnce(ctx context.Context, engine *clinic.Engine, batchSize int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	processed, err := engine.RunSyncTasks(runCtx, batchSize)
	if err != nil {
		log.Error().Err(err).Msg("sync run error")
		return
	}
	log.Info().Int("processed", processed).Dur("elapsed", time.Since(start)).Msg("sync run complete")
}
