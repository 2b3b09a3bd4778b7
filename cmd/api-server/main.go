package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/api"
	"github.com/giahuylhoang/dental-api/internal/calendar"
	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/config"
	"github.com/giahuylhoang/dental-api/internal/db"
	"github.com/giahuylhoang/dental-api/internal/metrics"
	redisclient "github.com/giahuylhoang/dental-api/internal/redis"
)

const version = "1.0.0"

func main() {
	log := newLogger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configured")

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var cal calendar.Client
	if cfg.CalendarBaseURL != "" {
		cal = calendar.NewHTTPClient(cfg.CalendarBaseURL, cfg.CalendarToken, cfg.CalendarTimeout, log)
		log.Info().Str("base_url", cfg.CalendarBaseURL).Msg("calendar mirroring enabled")
	} else {
		log.Warn().Msg("CALENDAR_BASE_URL not set, calendar mirroring disabled")
	}

	repo := clinic.NewPgRepository(pgPool)
	cache := redisclient.NewSlotCache(rdb, cfg.SlotCacheTTL, log)
	engine := clinic.NewEngine(repo, cal, cache, m, log, clinic.EngineConfig{
		Granularity:     cfg.SlotGranularity,
		Horizon:         cfg.BookingHorizon,
		CalendarTimeout: cfg.CalendarTimeout,
		Location:        cfg.Location(),
	})

	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		PgPool:   pgPool,
		Redis:    rdb,
		Metrics:  m,
		Registry: registry,
		Logger:   log,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "api-server").
		Logger()
}
