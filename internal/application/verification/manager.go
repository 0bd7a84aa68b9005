package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-stream/internal/domain"
	"github.com/go-otp-stream/internal/pkg/otp"
)

// CodeStore is the TTL key-value store contract. Get returns an error wrapping
// domain.ErrNotFound when the key is absent or expired. CompareAndDelete must
// be atomic: it removes key only if it still holds expected and reports
// whether this call removed it.
type CodeStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// Manager issues and validates single-use codes. It holds no in-process lock;
// single use relies on the store's CompareAndDelete.
type Manager struct {
	store  CodeStore
	gen    codeGenerator
	hasher *otp.Hasher
	now    func() time.Time
}

type ManagerDeps struct {
	Store     CodeStore
	Generator codeGenerator
	Hasher    *otp.Hasher
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewManager(deps ManagerDeps) *Manager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: deps.Store, gen: deps.Generator, hasher: deps.Hasher, now: now}
}

// Key is the store key for a principal's live code of the given purpose.
func Key(principalID string, purpose domain.Purpose) string {
	return "otp:" + string(purpose) + ":" + principalID
}

// Issue generates a code and stores its digest, replacing any live code for
// the same principal and purpose.
func (m *Manager) Issue(ctx context.Context, principalID string, purpose domain.Purpose, validity time.Duration) (*domain.VerificationCode, error) {
	if principalID == "" {
		return nil, fmt.Errorf("principal id required: %w", domain.ErrBadRequest)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	if validity <= 0 {
		return nil, fmt.Errorf("validity must be positive, got %s: %w", validity, domain.ErrBadRequest)
	}
	code, err := m.gen.Generate()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	if err := m.store.Set(ctx, Key(principalID, purpose), m.hasher.Digest(code), validity); err != nil {
		codeOps.WithLabelValues("issue", "store_error").Inc()
		return nil, fmt.Errorf("store code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	codeOps.WithLabelValues("issue", "ok").Inc()
	slog.Info("verification code issued", "principal_id", principalID, "purpose", purpose, "expires_in", validity)
	return &domain.VerificationCode{
		PrincipalID: principalID,
		Purpose:     purpose,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(validity),
	}, nil
}

// Validate consumes the live code if submitted matches it. It returns nil on
// success, or an error wrapping domain.ErrCodeNotFound, domain.ErrCodeMismatch
// or domain.ErrStoreUnavailable. A mismatch leaves the live code in place.
func (m *Manager) Validate(ctx context.Context, principalID string, purpose domain.Purpose, submitted string) error {
	if principalID == "" || !purpose.Valid() {
		return fmt.Errorf("invalid principal or purpose: %w", domain.ErrBadRequest)
	}
	key := Key(principalID, purpose)
	stored, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		codeOps.WithLabelValues("validate", "not_found").Inc()
		return fmt.Errorf("no live code: %w", domain.ErrCodeNotFound)
	}
	if err != nil {
		codeOps.WithLabelValues("validate", "store_error").Inc()
		return fmt.Errorf("read code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	if !otp.Equal(stored, m.hasher.Digest(submitted)) {
		codeOps.WithLabelValues("validate", "mismatch").Inc()
		return fmt.Errorf("submitted code differs: %w", domain.ErrCodeMismatch)
	}
	deleted, err := m.store.CompareAndDelete(ctx, key, stored)
	if err != nil {
		codeOps.WithLabelValues("validate", "store_error").Inc()
		return fmt.Errorf("consume code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	if !deleted {
		// consumed, replaced or expired since the read
		codeOps.WithLabelValues("validate", "not_found").Inc()
		return fmt.Errorf("code already consumed: %w", domain.ErrCodeNotFound)
	}
	codeOps.WithLabelValues("validate", "ok").Inc()
	slog.Info("verification code consumed", "principal_id", principalID, "purpose", purpose)
	return nil
}

// Revoke drops any live code for the principal and purpose. Deleting an absent key is not an error.
func (m *Manager) Revoke(ctx context.Context, principalID string, purpose domain.Purpose) error {
	if err := m.store.Delete(ctx, Key(principalID, purpose)); err != nil {
		return fmt.Errorf("delete code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}
