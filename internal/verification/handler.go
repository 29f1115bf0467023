package verification

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
)

// genericSent is returned whether or not the email belongs to an account.
const genericSent = "If this email exists, a reset code has been sent to verify yourself."

// Handler exposes the code-driven endpoints: email verification, resend and
// password reset.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type VerifyEmailRequest struct {
	Email string       `json:"email" validate:"required,email"`
	Code  httpx.Digits `json:"code" validate:"required,number,max=6"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string       `json:"email" validate:"required,email"`
	Code        httpx.Digits `json:"code" validate:"required,number,max=6"`
	NewPassword string       `json:"new_password" validate:"required"`
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	code, err := req.Code.Int()
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Wrap(httpx.ErrInvalidPayload, err))
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Email, code); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			httpx.WriteDetail(w, http.StatusNotFound, "Something went wrong.")
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Email verified.")
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.svc.ResendEmailVerification(r.Context(), req.Email); err != nil {
		// Verified accounts get no mail and the same answer as unknown emails.
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, ErrAlreadyVerified) {
			httpx.WriteDetail(w, http.StatusNotFound, genericSent)
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, genericSent)
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httpx.WriteDetail(w, http.StatusBadRequest, genericSent)
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteDetail(w, http.StatusCreated, genericSent)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	code, err := req.Code.Int()
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Wrap(httpx.ErrInvalidPayload, err))
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Email, code, req.NewPassword); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Password reset successful.")
}
