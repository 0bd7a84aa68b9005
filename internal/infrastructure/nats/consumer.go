// Package nats feeds "notification created" messages from a NATS subject into
// the notification service.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-otp-stream/internal/domain"
	natspkg "github.com/nats-io/nats.go"
)

type ingester interface {
	Ingest(ctx context.Context, ev domain.NotificationEvent) (*domain.NotificationEvent, error)
}

// conn is the part of *natspkg.Conn the consumer drives.
type conn interface {
	QueueSubscribe(subj, queue string, cb natspkg.MsgHandler) (*natspkg.Subscription, error)
	Drain() error
	Close()
	Status() natspkg.Status
}

// Consumer is a queue-group subscriber; replicas sharing a queue name split the stream.
type Consumer struct {
	nc      conn
	sub     *natspkg.Subscription
	svc     ingester
	timeout time.Duration
	// closed is closed once the connection reaches CLOSED, which after
	// Drain means every pending message has been handled.
	closed chan struct{}
}

func Connect(url string, svc ingester, timeout time.Duration) (*Consumer, error) {
	closed := make(chan struct{})
	var once sync.Once
	nc, err := natspkg.Connect(url,
		natspkg.Name("go-otp-stream"),
		natspkg.MaxReconnects(-1),
		natspkg.DisconnectErrHandler(func(_ *natspkg.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		natspkg.ReconnectHandler(func(c *natspkg.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		natspkg.ClosedHandler(func(*natspkg.Conn) {
			once.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Consumer{nc: nc, svc: svc, timeout: timeout, closed: closed}, nil
}

// Start subscribes to subject within queue group queue.
func (c *Consumer) Start(subject, queue string) error {
	sub, err := c.nc.QueueSubscribe(subject, queue, func(msg *natspkg.Msg) {
		_ = c.handle(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.sub = sub
	slog.Info("nats consumer started", "subject", subject, "queue", queue)
	return nil
}

// Drain stops receiving and blocks until every pending message has been
// handled and the connection is closed. If ctx ends first the connection is
// closed hard and ctx's error is returned.
func (c *Consumer) Drain(ctx context.Context) error {
	if err := c.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	select {
	case <-c.closed:
		return nil
	case <-ctx.Done():
		c.nc.Close()
		return fmt.Errorf("drain nats: %w", ctx.Err())
	}
}

func (c *Consumer) IsConnected() bool {
	return c.nc != nil && c.nc.Status() == natspkg.CONNECTED
}

func (c *Consumer) handle(data []byte) error {
	var ev domain.NotificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("dropping malformed notification message", "err", err)
		return fmt.Errorf("decode notification: %w", domain.ErrBadRequest)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	stored, err := c.svc.Ingest(ctx, ev)
	if err != nil {
		slog.Error("ingest notification failed", "principal_id", ev.PrincipalID, "err", err)
		return err
	}
	slog.Debug("notification ingested", "notification_id", stored.ID, "principal_id", stored.PrincipalID)
	return nil
}
