package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-stream/internal/config"
	"github.com/go-otp-stream/internal/domain"
	"github.com/go-otp-stream/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-stream/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.Verifier != nil {
		authMw = appmiddleware.Auth(deps.Verifier)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	limiter := deps.Limiter
	if limiter == nil {
		// 5 requests/second, burst of 10
		limiter = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}

	healthH := handler.NewHealthHandler(deps.HealthChecks)
	pwH := handler.NewPasswordRecoveryHandler(deps.AuthService)
	emailH := handler.NewEmailConfirmHandler(deps.AuthService)
	phoneH := handler.NewPhoneConfirmHandler(deps.AuthService)
	notifH := handler.NewNotificationHandler(deps.NotificationService)
	streamH := handler.NewStreamHandler(deps.Bus, cfg.Stream.PingInterval, cfg.AllowedOrigins)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(limiter.Limit).Post("/password-recovery/{action}", pwH.Action)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(limiter.Limit).Post("/confirm-email/{action}", emailH.Action)
			r.With(limiter.Limit).Post("/confirm-phone/{action}", phoneH.Action)

			r.Get("/notifications", notifH.ListUnread)
			r.Put("/notifications/{id}", notifH.MarkAsRead)
			r.Get("/notifications/stream", streamH.SSE)
			r.Get("/notifications/ws", streamH.WebSocket)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/notifications", notifH.Create)
			})
		})
	})

	return r
}
