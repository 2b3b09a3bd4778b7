package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/metrics"
)

type RouterConfig struct {
	Engine   *clinic.Engine
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/calendar/slots", getSlotsHandler(cfg.Engine))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Engine))
			r.Get("/", listAppointmentsHandler(cfg.Engine))
			r.Get("/{id}", getAppointmentHandler(cfg.Engine))
			r.Put("/{id}/cancel", cancelAppointmentHandler(cfg.Engine))
			r.Put("/{id}/status", updateAppointmentStatusHandler(cfg.Engine))
			r.Put("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Engine))
			r.Delete("/{id}", deleteAppointmentHandler(cfg.Engine))
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", listDoctorsHandler(cfg.Engine))
			r.Get("/{id}", getDoctorHandler(cfg.Engine))
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", listServicesHandler(cfg.Engine))
			r.Get("/{id}", getServiceHandler(cfg.Engine))
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Engine))
			r.Post("/", createPatientHandler(cfg.Engine))
			r.Post("/verify", verifyPatientHandler(cfg.Engine))
			r.Get("/{id}", getPatientHandler(cfg.Engine))
			r.Put("/{id}", updatePatientHandler(cfg.Engine))
		})

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", createLeadHandler(cfg.Engine))
			r.Get("/", listLeadsHandler(cfg.Engine))
			r.Get("/{id}", getLeadHandler(cfg.Engine))
			r.Put("/{id}", updateLeadHandler(cfg.Engine))
			r.Put("/{id}/status", updateLeadStatusHandler(cfg.Engine))
		})
	})

	return r
}
