package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-otp-stream/internal/application/auth"
	"github.com/go-otp-stream/internal/domain"
	jwtinfra "github.com/go-otp-stream/internal/infrastructure/jwt"
	"github.com/go-otp-stream/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestPasswordRecovery(ctx context.Context, req auth.PasswordRecoveryRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) RequestEmailConfirmation(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockAuthSvc) ValidateEmailCode(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockAuthSvc) RequestPhoneConfirmation(ctx context.Context, userID, channel string) error {
	return m.Called(ctx, userID, channel).Error(0)
}

func (m *mockAuthSvc) ValidatePhoneCode(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.NotificationEvent, error) {
	args := m.Called(ctx, req)
	if n, _ := args.Get(0).(*domain.NotificationEvent); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) Ingest(ctx context.Context, ev domain.NotificationEvent) (*domain.NotificationEvent, error) {
	args := m.Called(ctx, ev)
	if n, _ := args.Get(0).(*domain.NotificationEvent); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) ListUnread(ctx context.Context, userID string) ([]domain.NotificationEvent, error) {
	args := m.Called(ctx, userID)
	if ns, _ := args.Get(0).([]domain.NotificationEvent); ns != nil {
		return ns, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.NotificationEvent, error) {
	args := m.Called(ctx, notificationID, userID)
	if n, _ := args.Get(0).(*domain.NotificationEvent); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

// withClaims attaches verified claims for userID, as middleware.Auth would.
func withClaims(r *http.Request, userID, role string) *http.Request {
	claims := &jwtinfra.Claims{UserID: userID, Role: role}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

// withChiParams injects chi URL params into the request context.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// authedAs wraps h so every request carries claims for userID.
func authedAs(userID string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, withClaims(r, userID, domain.RoleUser))
	})
}
