package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-otp-stream/internal/domain"
	"github.com/go-otp-stream/internal/pkg/id"
)

type Service interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.NotificationEvent, error)
	Ingest(ctx context.Context, ev domain.NotificationEvent) (*domain.NotificationEvent, error)
	ListUnread(ctx context.Context, userID string) ([]domain.NotificationEvent, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.NotificationEvent, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.NotificationEvent) error
	Get(ctx context.Context, notificationID string) (*domain.NotificationEvent, error)
	ListUnread(ctx context.Context, userID string) ([]domain.NotificationEvent, error)
	MarkAsRead(ctx context.Context, notificationID string) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, ev domain.NotificationEvent) error
}

type ServiceDeps struct {
	Repo       notificationStore
	Dispatcher dispatcher
	Now        func() time.Time
}

type service struct {
	repo       notificationStore
	dispatcher dispatcher
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.Repo, dispatcher: deps.Dispatcher, now: now}
}

func (s *service) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.NotificationEvent, error) {
	return s.Ingest(ctx, domain.NotificationEvent{
		PrincipalID: req.PrincipalID,
		Title:       req.Title,
		Body:        req.Body,
		Category:    req.Category,
	})
}

// Ingest persists ev and hands it to the dispatcher. A missing id or
// timestamp is assigned here. Delivery failures are logged, never returned:
// the notification is already stored and shows up in history.
func (s *service) Ingest(ctx context.Context, ev domain.NotificationEvent) (*domain.NotificationEvent, error) {
	if strings.TrimSpace(ev.PrincipalID) == "" || strings.TrimSpace(ev.Title) == "" {
		return nil, fmt.Errorf("principal_id and title required: %w", domain.ErrBadRequest)
	}
	if !ev.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q: %w", ev.Category, domain.ErrBadRequest)
	}
	if ev.ID == "" {
		ev.ID = id.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	ev.Read = false

	if err := s.repo.Put(ctx, &ev); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		slog.Warn("notification stored but not pushed live", "notification_id", ev.ID, "principal_id", ev.PrincipalID, "err", err)
	}
	return &ev, nil
}

func (s *service) ListUnread(ctx context.Context, userID string) ([]domain.NotificationEvent, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *service) MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.NotificationEvent, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.PrincipalID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	if n.Read {
		return n, nil
	}
	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}
