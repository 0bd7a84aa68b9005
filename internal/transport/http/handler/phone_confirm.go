package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-otp-stream/internal/application/auth"
	"github.com/go-otp-stream/internal/pkg/validate"
	"github.com/go-otp-stream/internal/transport/http/middleware"
)

// PhoneConfirmHandler handles phone confirmation flow endpoints.
type PhoneConfirmHandler struct {
	svc auth.Service
}

func NewPhoneConfirmHandler(svc auth.Service) *PhoneConfirmHandler {
	return &PhoneConfirmHandler{svc: svc}
}

func (h *PhoneConfirmHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		var req auth.PhoneConfirmationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.RequestPhoneConfirmation(r.Context(), claims.UserID, req.Channel); err != nil {
			httpError(w, err)
			return
		}
		msg := "confirmation SMS sent"
		if req.Channel == auth.ChannelVoice {
			msg = "confirmation call placed"
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
	case "validate-code":
		var req auth.ValidateCodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.ValidatePhoneCode(r.Context(), claims.UserID, req.Code); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "phone confirmed"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
