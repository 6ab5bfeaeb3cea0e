package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caresync/booking-engine/internal/approval"
	"github.com/caresync/booking-engine/internal/availability"
	"github.com/caresync/booking-engine/internal/booking"
)

type RouterConfig struct {
	Booking    *booking.Service
	Approval   *approval.Service
	Calculator *availability.Calculator
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Logger     zerolog.Logger
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability and booking
	r.Get("/providers/{id}/availability", getAvailabilityHandler(cfg.Calculator))
	r.Post("/appointments", bookAppointmentHandler(cfg.Booking))
	r.Post("/appointments/serial", bookSerialHandler(cfg.Booking))
	r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/status", updateAppointmentStatusHandler(cfg.Booking))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/record", attachRecordHandler(cfg.Booking))

	// Facility admission
	r.Post("/facilities", registerFacilityHandler(cfg.Approval))
	r.Patch("/facilities/{id}", updateFacilityHandler(cfg.Approval))
	r.Post("/facilities/{id}/approve", approveFacilityHandler(cfg.Approval))
	r.Post("/facilities/{id}/reject", rejectFacilityHandler(cfg.Approval))
	r.Get("/facilities/{id}/audit", facilityAuditHandler(cfg.Approval))
	r.Post("/facilities/{id}/providers", addProviderByFacilityHandler(cfg.Approval))
	r.Post("/facilities/{id}/providers/{providerID}/approve", approveProviderByFacilityHandler(cfg.Approval))

	// Provider admission
	r.Post("/providers", registerProviderHandler(cfg.Approval))
	r.Post("/providers/{id}/approve", approveProviderByAdminHandler(cfg.Approval))
	r.Post("/providers/{id}/reject", rejectProviderHandler(cfg.Approval))
	r.Get("/providers/{id}/audit", providerAuditHandler(cfg.Approval))

	return r
}
