package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-otp-stream/internal/application/auth"
	"github.com/go-otp-stream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func postAction(target, action string, body []byte) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	return withChiParams(r, "action", action)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) MessageEnvelope {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// --- confirm-email ---

func TestEmailConfirm_MissingClaims(t *testing.T) {
	h := NewEmailConfirmHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/confirm-email/request", "request", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEmailConfirm_Request(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestEmailConfirmation", mock.Anything, "u1").Return(nil)
	h := NewEmailConfirmHandler(svc)

	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-email/request", "request", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "confirmation email sent", decodeEnvelope(t, rr).Message)
	svc.AssertExpectations(t)
}

func TestEmailConfirm_RequestAlreadyConfirmed(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestEmailConfirmation", mock.Anything, "u1").Return(fmt.Errorf("%w: email already confirmed", domain.ErrConflict))
	h := NewEmailConfirmHandler(svc)

	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-email/request", "request", nil), "u1", domain.RoleUser))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestEmailConfirm_ValidateCode(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ValidateEmailCode", mock.Anything, "u1", "483920").Return(nil)
	h := NewEmailConfirmHandler(svc)

	body, _ := json.Marshal(auth.ValidateCodeRequest{Code: "483920"})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-email/validate-code", "validate-code", body), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestEmailConfirm_ValidateCodeRejectsNonNumeric(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewEmailConfirmHandler(svc)

	body, _ := json.Marshal(auth.ValidateCodeRequest{Code: "abc"})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-email/validate-code", "validate-code", body), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "ValidateEmailCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailConfirm_WrongAndExpiredCodeSameResponse(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ValidateEmailCode", mock.Anything, "u1", "000000").Return(domain.ErrCodeMismatch)
	svc.On("ValidateEmailCode", mock.Anything, "u1", "111111").Return(domain.ErrCodeNotFound)
	h := NewEmailConfirmHandler(svc)

	send := func(code string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(auth.ValidateCodeRequest{Code: code})
		rr := httptest.NewRecorder()
		h.Action(rr, withClaims(postAction("/v1/confirm-email/validate-code", "validate-code", body), "u1", domain.RoleUser))
		return rr
	}
	wrong, expired := send("000000"), send("111111")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, expired.Code)
	assert.Equal(t, wrong.Body.String(), expired.Body.String())
}

func TestEmailConfirm_UnknownAction(t *testing.T) {
	h := NewEmailConfirmHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-email/resend", "resend", nil), "u1", domain.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- confirm-phone ---

func TestPhoneConfirm_RequestDefaultsToSMS(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestPhoneConfirmation", mock.Anything, "u1", "").Return(nil)
	h := NewPhoneConfirmHandler(svc)

	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-phone/request", "request", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "confirmation SMS sent", decodeEnvelope(t, rr).Message)
	svc.AssertExpectations(t)
}

func TestPhoneConfirm_RequestVoice(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestPhoneConfirmation", mock.Anything, "u1", auth.ChannelVoice).Return(nil)
	h := NewPhoneConfirmHandler(svc)

	body, _ := json.Marshal(auth.PhoneConfirmationRequest{Channel: auth.ChannelVoice})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-phone/request", "request", body), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "confirmation call placed", decodeEnvelope(t, rr).Message)
}

func TestPhoneConfirm_RequestUnknownChannel(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewPhoneConfirmHandler(svc)

	body, _ := json.Marshal(auth.PhoneConfirmationRequest{Channel: "fax"})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-phone/request", "request", body), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPhoneConfirm_SenderFailureIsBadGateway(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestPhoneConfirmation", mock.Anything, "u1", "").Return(fmt.Errorf("send sms: %w", domain.ErrSenderFailure))
	h := NewPhoneConfirmHandler(svc)

	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-phone/request", "request", nil), "u1", domain.RoleUser))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestPhoneConfirm_ValidateCodeStoreDown(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ValidatePhoneCode", mock.Anything, "u1", "123456").Return(fmt.Errorf("get code: %w", domain.ErrStoreUnavailable))
	h := NewPhoneConfirmHandler(svc)

	body, _ := json.Marshal(auth.ValidateCodeRequest{Code: "123456"})
	rr := httptest.NewRecorder()
	h.Action(rr, withClaims(postAction("/v1/confirm-phone/validate-code", "validate-code", body), "u1", domain.RoleUser))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// --- password-recovery ---

func TestPasswordRecovery_InvalidBody(t *testing.T) {
	h := NewPasswordRecoveryHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/request", "request", []byte("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPasswordRecovery_RequestInvalidEmail(t *testing.T) {
	h := NewPasswordRecoveryHandler(&mockAuthSvc{})
	body, _ := json.Marshal(auth.PasswordRecoveryRequest{Email: "nope"})
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/request", "request", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPasswordRecovery_Request(t *testing.T) {
	svc := &mockAuthSvc{}
	req := auth.PasswordRecoveryRequest{Email: "a@example.com"}
	svc.On("RequestPasswordRecovery", mock.Anything, req).Return(nil)
	h := NewPasswordRecoveryHandler(svc)

	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/request", "request", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestPasswordRecovery_ResetPassword(t *testing.T) {
	svc := &mockAuthSvc{}
	req := auth.ResetPasswordRequest{Email: "a@example.com", Code: "483920", NewPassword: "correct-horse"}
	svc.On("ResetPassword", mock.Anything, req).Return(nil)
	h := NewPasswordRecoveryHandler(svc)

	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/validate-code", "validate-code", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "password updated", decodeEnvelope(t, rr).Message)
	svc.AssertExpectations(t)
}

func TestPasswordRecovery_ResetPasswordTooShort(t *testing.T) {
	h := NewPasswordRecoveryHandler(&mockAuthSvc{})
	body, _ := json.Marshal(auth.ResetPasswordRequest{Email: "a@example.com", Code: "483920", NewPassword: "short"})
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/validate-code", "validate-code", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPasswordRecovery_ResetPasswordBadCode(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResetPassword", mock.Anything, mock.Anything).Return(domain.ErrCodeNotFound)
	h := NewPasswordRecoveryHandler(svc)

	body, _ := json.Marshal(auth.ResetPasswordRequest{Email: "a@example.com", Code: "000000", NewPassword: "correct-horse"})
	rr := httptest.NewRecorder()
	h.Action(rr, postAction("/v1/password-recovery/validate-code", "validate-code", body))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid or expired code", decodeEnvelope(t, rr).Error)
}
