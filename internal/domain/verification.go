package domain

import "time"

// Purpose scopes a verification code; a principal holds at most one live code per purpose.
type Purpose string

const (
	PurposeEmail         Purpose = "email"
	PurposePhone         Purpose = "phone"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmail, PurposePhone, PurposePasswordReset:
		return true
	}
	return false
}

// VerificationCode is the result of issuing a code. Only a digest of Code is
// ever written to the TTL store.
type VerificationCode struct {
	PrincipalID string    `json:"principal_id"`
	Purpose     Purpose   `json:"purpose"`
	Code        string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
