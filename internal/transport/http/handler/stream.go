package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-otp-stream/internal/application/eventbus"
	"github.com/go-otp-stream/internal/domain"
	"github.com/go-otp-stream/internal/transport/http/middleware"
	"github.com/gorilla/websocket"
)

type streamer interface {
	Stream(ctx context.Context, principalID string) (*eventbus.Subscription, error)
}

// StreamHandler pushes live notification events to the authenticated principal
// over Server-Sent Events or WebSocket. There is no replay: a client sees only
// events published after it connected and uses the history endpoint to catch up.
type StreamHandler struct {
	bus          streamer
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewStreamHandler(bus streamer, pingInterval time.Duration, allowedOrigins []string) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &StreamHandler{
		bus:          bus,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// SSE serves text/event-stream. Each event is sent as "event: notification"
// with its id; a comment line keeps idle connections open.
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sub, err := h.bus.Stream(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// long-lived response: lift the server's WriteTimeout for this request
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("sse flush unsupported", "err", err)
		return
	}

	slog.Info("sse stream opened", "principal_id", claims.UserID)
	defer slog.Info("sse stream closed", "principal_id", claims.UserID)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				writeSSEEnd(w, sub.Err())
				_ = rc.Flush()
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev domain.NotificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", ev.ID, data)
	return err
}

// writeSSEEnd tells the client why the server ended the stream.
func writeSSEEnd(w http.ResponseWriter, cause error) {
	reason := "closed"
	switch {
	case errors.Is(cause, domain.ErrSubscriptionOverflow):
		reason = "overflow"
	case errors.Is(cause, domain.ErrBusClosed):
		reason = "shutdown"
	}
	_, _ = fmt.Fprintf(w, "event: end\ndata: {\"reason\":%q}\n\n", reason)
}

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

// WebSocket upgrades the connection and writes each event as a JSON text frame.
// Inbound frames are read only to service control messages and detect disconnects.
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "principal_id", claims.UserID, "err", err)
		return
	}
	defer conn.Close()

	// a hijacked connection dropping does not cancel r.Context(); the read pump does
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.bus.Stream(ctx, claims.UserID)
	if err != nil {
		closeWS(conn, websocket.CloseTryAgainLater, "stream unavailable")
		return
	}
	defer sub.Close()

	slog.Info("websocket stream opened", "principal_id", claims.UserID)
	defer slog.Info("websocket stream closed", "principal_id", claims.UserID)

	pongWait := 2 * h.pingInterval
	go func() {
		defer cancel()
		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				code, reason := websocket.CloseNormalClosure, "closed"
				switch {
				case errors.Is(sub.Err(), domain.ErrSubscriptionOverflow):
					code, reason = websocket.CloseTryAgainLater, "overflow"
				case errors.Is(sub.Err(), domain.ErrBusClosed):
					code, reason = websocket.CloseGoingAway, "shutdown"
				}
				closeWS(conn, code, reason)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func closeWS(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin. "*" allows all.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
