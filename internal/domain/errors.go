package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Verification outcomes. Handlers must render both code failures identically.
	ErrCodeNotFound     = errors.New("verification code not found")
	ErrCodeMismatch     = errors.New("verification code mismatch")
	ErrStoreUnavailable = errors.New("ttl store unavailable")

	// Live delivery outcomes.
	ErrSubscriptionOverflow = errors.New("subscription buffer overflow")
	ErrBusClosed            = errors.New("event bus closed")
	ErrSenderFailure        = errors.New("out-of-band sender failure")
)
