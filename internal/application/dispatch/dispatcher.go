// Package dispatch hands persisted notification events to the live event bus
// and, independently, to out-of-band senders (email, SMS, voice).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-otp-stream/internal/domain"
)

// Channel is an out-of-band delivery route.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// DefaultRoutes maps each category to the channels it is sent through besides in-app.
var DefaultRoutes = map[domain.Category][]Channel{
	domain.CategoryOrderUpdate:   {ChannelEmail, ChannelSMS},
	domain.CategoryAccountUpdate: {ChannelEmail},
	domain.CategorySecurityAlert: {ChannelEmail, ChannelSMS, ChannelVoice},
	domain.CategoryPromotion:     nil,
}

type publisher interface {
	Publish(ev domain.NotificationEvent) error
}

type contactResolver interface {
	ResolveContact(ctx context.Context, principalID string) (*domain.Contact, error)
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type voiceCaller interface {
	InitiateVoiceCall(ctx context.Context, to, spokenText string) error
}

// Report summarises the out-of-band half of one dispatch. Results holds one
// entry per attempted channel; a nil error means the sender accepted it.
type Report struct {
	EventID     string
	PrincipalID string
	ContactErr  error
	Results     map[Channel]error
	Skipped     []Channel
}

// Err joins every channel failure, or returns nil.
func (r Report) Err() error {
	errs := []error{r.ContactErr}
	for _, err := range r.Results {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type Dispatcher struct {
	bus      publisher
	contacts contactResolver
	email    emailSender
	sms      smsSender
	voice    voiceCaller
	routes   map[domain.Category][]Channel
	timeout  time.Duration
	onReport func(Report)

	mu     sync.Mutex // guards closed and wg.Add against Close
	closed bool
	wg     sync.WaitGroup
}

// Deps wires the dispatcher. Any sender may be nil; its channel is then skipped.
type Deps struct {
	Bus      publisher
	Contacts contactResolver
	Email    emailSender
	SMS      smsSender
	Voice    voiceCaller
	Routes   map[domain.Category][]Channel
	// SendTimeout bounds the whole out-of-band half of one dispatch.
	SendTimeout time.Duration
	// OnReport, if set, receives every out-of-band report.
	OnReport func(Report)
}

func New(deps Deps) *Dispatcher {
	routes := deps.Routes
	if routes == nil {
		routes = DefaultRoutes
	}
	timeout := deps.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		bus:      deps.Bus,
		contacts: deps.Contacts,
		email:    deps.Email,
		sms:      deps.SMS,
		voice:    deps.Voice,
		routes:   routes,
		timeout:  timeout,
		onReport: deps.OnReport,
	}
}

// Dispatch publishes ev in-app and starts out-of-band delivery in the
// background. The returned error is the in-app publish outcome only.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.NotificationEvent) error {
	if ev.PrincipalID == "" {
		return fmt.Errorf("event %s has no principal: %w", ev.ID, domain.ErrBadRequest)
	}
	if channels := d.routes[ev.Category]; len(channels) > 0 && d.contacts != nil {
		d.startOutOfBand(ctx, ev, channels)
	}
	if err := d.bus.Publish(ev); err != nil {
		slog.Warn("in-app publish failed", "event_id", ev.ID, "principal_id", ev.PrincipalID, "err", err)
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}

func (d *Dispatcher) startOutOfBand(ctx context.Context, ev domain.NotificationEvent, channels []Channel) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		senderOutcomes.WithLabelValues("all", "rejected_closed").Inc()
		slog.Warn("dispatcher closed, skipping out-of-band delivery", "event_id", ev.ID, "principal_id", ev.PrincipalID)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// detached: the out-of-band half must outlive the request that produced ev
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.deliverOutOfBand(sendCtx, ev, channels)
	}()
}

// Wait blocks until every started out-of-band delivery has finished. Callers
// must not Dispatch concurrently; use Close at shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Close stops accepting out-of-band work and waits for started deliveries.
// Dispatch keeps publishing in-app after Close.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliverOutOfBand(ctx context.Context, ev domain.NotificationEvent, channels []Channel) {
	rep := Report{EventID: ev.ID, PrincipalID: ev.PrincipalID, Results: make(map[Channel]error, len(channels))}
	defer func() { d.report(rep) }()

	contact, err := d.contacts.ResolveContact(ctx, ev.PrincipalID)
	if err != nil {
		rep.ContactErr = fmt.Errorf("resolve contact: %v: %w", err, domain.ErrSenderFailure)
		senderOutcomes.WithLabelValues("contact", "error").Inc()
		slog.Warn("contact lookup failed, skipping out-of-band delivery", "event_id", ev.ID, "principal_id", ev.PrincipalID, "err", err)
		return
	}

	type result struct {
		ch  Channel
		err error
	}
	results := make(chan result, len(channels))
	var wg sync.WaitGroup
	for _, ch := range channels {
		send := d.senderFor(ch, contact, ev)
		if send == nil {
			rep.Skipped = append(rep.Skipped, ch)
			senderOutcomes.WithLabelValues(string(ch), "skipped").Inc()
			continue
		}
		wg.Add(1)
		go func(ch Channel, send func(context.Context) error) {
			defer wg.Done()
			results <- result{ch: ch, err: send(ctx)}
		}(ch, send)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			rep.Results[r.ch] = fmt.Errorf("%s: %v: %w", r.ch, r.err, domain.ErrSenderFailure)
			senderOutcomes.WithLabelValues(string(r.ch), "error").Inc()
			slog.Error("out-of-band delivery failed", "event_id", ev.ID, "principal_id", ev.PrincipalID, "channel", r.ch, "err", r.err)
			continue
		}
		rep.Results[r.ch] = nil
		senderOutcomes.WithLabelValues(string(r.ch), "ok").Inc()
	}
}

// senderFor returns nil when the channel has no sender or the principal has no address for it.
func (d *Dispatcher) senderFor(ch Channel, c *domain.Contact, ev domain.NotificationEvent) func(context.Context) error {
	switch ch {
	case ChannelEmail:
		if d.email == nil || c.Email == nil || *c.Email == "" {
			return nil
		}
		return func(ctx context.Context) error { return d.email.SendEmail(ctx, *c.Email, ev.Title, ev.Body) }
	case ChannelSMS:
		if d.sms == nil || c.Phone == nil || *c.Phone == "" {
			return nil
		}
		return func(ctx context.Context) error { return d.sms.SendSMS(ctx, *c.Phone, shortText(ev)) }
	case ChannelVoice:
		if d.voice == nil || c.Phone == nil || *c.Phone == "" {
			return nil
		}
		return func(ctx context.Context) error { return d.voice.InitiateVoiceCall(ctx, *c.Phone, shortText(ev)) }
	}
	return nil
}

func (d *Dispatcher) report(rep Report) {
	if d.onReport != nil {
		d.onReport(rep)
	}
}

func shortText(ev domain.NotificationEvent) string {
	if ev.Body == "" {
		return ev.Title
	}
	return ev.Title + ": " + ev.Body
}
