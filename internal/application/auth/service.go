package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-otp-stream/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type PasswordRecoveryRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// bcrypt ignores input past 72 bytes and GenerateFromPassword rejects it.
const maxPasswordBytes = 72

type ValidateCodeRequest struct {
	Code string `json:"code" validate:"required,numeric"`
}

type PhoneConfirmationRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=sms voice"`
}

// Phone delivery channels for confirmation codes.
const (
	ChannelSMS   = "sms"
	ChannelVoice = "voice"
)

type Service interface {
	RequestPasswordRecovery(ctx context.Context, req PasswordRecoveryRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	RequestEmailConfirmation(ctx context.Context, userID string) error
	ValidateEmailCode(ctx context.Context, userID, code string) error
	RequestPhoneConfirmation(ctx context.Context, userID, channel string) error
	ValidatePhoneCode(ctx context.Context, userID, code string) error
}

// --- consumer-side interfaces ---

type codeManager interface {
	Issue(ctx context.Context, principalID string, purpose domain.Purpose, validity time.Duration) (*domain.VerificationCode, error)
	Validate(ctx context.Context, principalID string, purpose domain.Purpose, submitted string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailConfirmed(ctx context.Context, userID string) error
	MarkPhoneConfirmed(ctx context.Context, userID string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type voiceCaller interface {
	InitiateVoiceCall(ctx context.Context, to, spokenText string) error
}

// TTLs is the code validity per purpose.
type TTLs struct {
	Email         time.Duration
	Phone         time.Duration
	PasswordReset time.Duration
}

type ServiceDeps struct {
	Codes  codeManager
	Users  userStore
	Mailer mailer
	SMS    smsSender
	Voice  voiceCaller // optional
	TTLs   TTLs
}

type service struct {
	codes  codeManager
	users  userStore
	mailer mailer
	sms    smsSender
	voice  voiceCaller
	ttls   TTLs
}

func NewService(deps ServiceDeps) Service {
	return &service{
		codes:  deps.Codes,
		users:  deps.Users,
		mailer: deps.Mailer,
		sms:    deps.SMS,
		voice:  deps.Voice,
		ttls:   deps.TTLs,
	}
}

// RequestPasswordRecovery mails a reset code. Once the address resolves to an
// account, issue and delivery failures are logged and counted but never
// returned, so the outcome looks the same whether or not the account exists.
func (s *service) RequestPasswordRecovery(ctx context.Context, req PasswordRecoveryRequest) error {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("password recovery for unknown email")
		recoveryOutcomes.WithLabelValues("unknown_email").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	vc, err := s.codes.Issue(ctx, u.UserID, domain.PurposePasswordReset, s.ttls.PasswordReset)
	if err != nil {
		slog.Error("issue reset code", "user_id", u.UserID, "err", err)
		recoveryOutcomes.WithLabelValues("issue_failed").Inc()
		return nil
	}
	body := fmt.Sprintf("Your password reset code is %s. It expires in %s.", vc.Code, humanize(s.ttls.PasswordReset))
	if err := s.mailer.SendEmail(ctx, u.Email, "Password Recovery", body); err != nil {
		slog.Error("send reset code", "user_id", u.UserID, "err", err)
		recoveryOutcomes.WithLabelValues("send_failed").Inc()
		return nil
	}
	recoveryOutcomes.WithLabelValues("sent").Inc()
	return nil
}

// ResetPassword consumes the reset code and stores the new password hash.
// The password is checked against bcrypt's byte limit before the code is
// touched, since a consumed code cannot be retried.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if len(req.NewPassword) > maxPasswordBytes {
		return fmt.Errorf("password longer than %d bytes: %w", maxPasswordBytes, domain.ErrBadRequest)
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("reset for unknown email: %w", domain.ErrCodeNotFound)
	}
	if err != nil {
		return err
	}
	if err := s.codes.Validate(ctx, u.UserID, domain.PurposePasswordReset, req.Code); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, u.UserID, string(hash)); err != nil {
		return err
	}
	slog.Info("password reset", "user_id", u.UserID)
	return nil
}

func (s *service) RequestEmailConfirmation(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailConfirmed {
		return fmt.Errorf("email already confirmed: %w", domain.ErrConflict)
	}
	if u.Email == "" {
		return fmt.Errorf("user has no email: %w", domain.ErrBadRequest)
	}
	vc, err := s.codes.Issue(ctx, u.UserID, domain.PurposeEmail, s.ttls.Email)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your confirmation code is %s. It expires in %s.", vc.Code, humanize(s.ttls.Email))
	if err := s.mailer.SendEmail(ctx, u.Email, "Confirm your email", body); err != nil {
		return fmt.Errorf("send email code: %v: %w", err, domain.ErrSenderFailure)
	}
	return nil
}

func (s *service) ValidateEmailCode(ctx context.Context, userID, code string) error {
	if err := s.codes.Validate(ctx, userID, domain.PurposeEmail, code); err != nil {
		return err
	}
	return s.users.MarkEmailConfirmed(ctx, userID)
}

// RequestPhoneConfirmation sends a code by SMS, or reads it out in a voice
// call when channel is "voice".
func (s *service) RequestPhoneConfirmation(ctx context.Context, userID, channel string) error {
	if channel == "" {
		channel = ChannelSMS
	}
	if channel != ChannelSMS && channel != ChannelVoice {
		return fmt.Errorf("unknown channel %q: %w", channel, domain.ErrBadRequest)
	}
	if channel == ChannelVoice && s.voice == nil {
		return fmt.Errorf("voice delivery not configured: %w", domain.ErrBadRequest)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.PhoneConfirmed {
		return fmt.Errorf("phone already confirmed: %w", domain.ErrConflict)
	}
	if u.Phone == nil || *u.Phone == "" {
		return fmt.Errorf("user has no phone number: %w", domain.ErrBadRequest)
	}
	vc, err := s.codes.Issue(ctx, u.UserID, domain.PurposePhone, s.ttls.Phone)
	if err != nil {
		return err
	}

	if channel == ChannelVoice {
		err = s.voice.InitiateVoiceCall(ctx, *u.Phone, "Your confirmation code is "+spell(vc.Code)+". Again, "+spell(vc.Code)+".")
	} else {
		err = s.sms.SendSMS(ctx, *u.Phone, "Your confirmation code is "+vc.Code)
	}
	if err != nil {
		return fmt.Errorf("send phone code via %s: %v: %w", channel, err, domain.ErrSenderFailure)
	}
	return nil
}

func (s *service) ValidatePhoneCode(ctx context.Context, userID, code string) error {
	if err := s.codes.Validate(ctx, userID, domain.PurposePhone, code); err != nil {
		return err
	}
	return s.users.MarkPhoneConfirmed(ctx, userID)
}

// spell separates digits so text-to-speech reads them one by one.
func spell(code string) string {
	return strings.Join(strings.Split(code, ""), ", ")
}

func humanize(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
