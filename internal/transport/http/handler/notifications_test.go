package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-otp-stream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListUnread_MissingClaims(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationSvc{})
	rr := httptest.NewRecorder()
	h.ListUnread(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListUnread_Envelope(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("ListUnread", mock.Anything, "u1").Return([]domain.NotificationEvent{
		{ID: "n2", PrincipalID: "u1", Title: "b", Category: domain.CategoryPromotion},
		{ID: "n1", PrincipalID: "u1", Title: "a", Category: domain.CategoryOrderUpdate},
	}, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.ListUnread(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env NotificationsEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, 2, env.Count)
	assert.Equal(t, "n2", env.Data[0].ID)
}

func TestListUnread_EmptyIsArray(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("ListUnread", mock.Anything, "u1").Return([]domain.NotificationEvent{}, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.ListUnread(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications", nil), "u1", domain.RoleUser))

	assert.JSONEq(t, `{"data":[],"count":0}`, rr.Body.String())
}

func TestMarkAsRead_NotOwner(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkAsRead", mock.Anything, "n1", "u2").Return(nil, domain.ErrForbidden)
	h := NewNotificationHandler(svc)

	r := withChiParams(httptest.NewRequest(http.MethodPut, "/v1/notifications/n1", nil), "id", "n1")
	rr := httptest.NewRecorder()
	h.MarkAsRead(rr, withClaims(r, "u2", domain.RoleUser))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMarkAsRead_OK(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkAsRead", mock.Anything, "n1", "u1").Return(&domain.NotificationEvent{ID: "n1", PrincipalID: "u1", Read: true}, nil)
	h := NewNotificationHandler(svc)

	r := withChiParams(httptest.NewRequest(http.MethodPut, "/v1/notifications/n1", nil), "id", "n1")
	rr := httptest.NewRecorder()
	h.MarkAsRead(rr, withClaims(r, "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	var n domain.NotificationEvent
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&n))
	assert.True(t, n.Read)
}

func TestCreate_ValidationFailure(t *testing.T) {
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)

	body, _ := json.Marshal(domain.CreateNotificationRequest{PrincipalID: "u1", Title: "x", Category: "newsletter"})
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_HappyPath(t *testing.T) {
	svc := &mockNotificationSvc{}
	req := domain.CreateNotificationRequest{PrincipalID: "u1", Title: "Order shipped", Category: domain.CategoryOrderUpdate}
	svc.On("Create", mock.Anything, req).Return(&domain.NotificationEvent{
		ID: "n1", PrincipalID: "u1", Title: "Order shipped", Category: domain.CategoryOrderUpdate, CreatedAt: time.Now().UTC(),
	}, nil)
	h := NewNotificationHandler(svc)

	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestHealth_PingAndReady(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	h := NewHealthHandler(map[string]Check{"store": ok})
	rr := httptest.NewRecorder()
	h.Ping(rr, withChiParams(httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil), "action", "ping"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Ping(rr, withChiParams(httptest.NewRequest(http.MethodGet, "/v1/health-check/ready", nil), "action", "ready"))
	assert.Equal(t, http.StatusOK, rr.Code)

	h = NewHealthHandler(map[string]Check{"store": ok, "nats": down})
	rr = httptest.NewRecorder()
	h.Ping(rr, withChiParams(httptest.NewRequest(http.MethodGet, "/v1/health-check/ready", nil), "action", "ready"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "nats")
	assert.NotContains(t, rr.Body.String(), `"store"`)
}
