// Package router assembles the HTTP surface: the public booking endpoint and
// the JWT-guarded staff routes.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborclinic/booking-platform/internal/approval"
	httpmiddleware "github.com/harborclinic/booking-platform/internal/http/middleware"
	"github.com/harborclinic/booking-platform/internal/payments"
	"github.com/harborclinic/booking-platform/internal/slots"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *payments.BookingHandler
	ApprovalHandler    *approval.Handler
	SlotAdminHandler   *slots.AdminHandler
	MetricsHandler     http.Handler
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Requests per second and burst for the public booking endpoint.
	BookingRateLimit float64
	BookingRateBurst int
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			rate, burst := cfg.BookingRateLimit, cfg.BookingRateBurst
			if rate <= 0 {
				rate = 5
			}
			if burst <= 0 {
				burst = 10
			}
			public.With(httpmiddleware.RateLimit(rate, burst)).Post("/bookings", cfg.BookingHandler.CreateBooking)
		}
	})

	// Staff endpoints. The whole /admin subtree sits behind the JWT check,
	// including paths that match nothing.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
		if cfg.ApprovalHandler != nil {
			admin.Post("/requests/{id}/decision", cfg.ApprovalHandler.Decide)
		}
		if cfg.SlotAdminHandler != nil {
			admin.Route("/slots", func(sl chi.Router) {
				sl.Get("/", cfg.SlotAdminHandler.List)
				sl.Post("/", cfg.SlotAdminHandler.Create)
				sl.Patch("/{id}", cfg.SlotAdminHandler.Update)
				sl.Delete("/{id}", cfg.SlotAdminHandler.Delete)
				sl.Post("/{id}/release", cfg.SlotAdminHandler.Release)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
