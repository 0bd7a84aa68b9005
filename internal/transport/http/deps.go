package http

import (
	"github.com/go-otp-stream/internal/application/auth"
	"github.com/go-otp-stream/internal/application/eventbus"
	"github.com/go-otp-stream/internal/application/notification"
	jwtinfra "github.com/go-otp-stream/internal/infrastructure/jwt"
	"github.com/go-otp-stream/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-stream/internal/transport/http/middleware"
)

// Deps holds the application services and infrastructure the router serves.
type Deps struct {
	AuthService         auth.Service
	NotificationService notification.Service
	Bus                 *eventbus.Bus
	Verifier            *jwtinfra.Verifier

	// Limiter guards code request and validate endpoints. Owned by the caller,
	// which stops it on shutdown.
	Limiter *appmiddleware.RateLimiter

	// HealthChecks back the readiness probe, keyed by dependency name.
	HealthChecks map[string]handler.Check
}
