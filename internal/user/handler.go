package user

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// EmailVerificationIssuer sends the first email-verification code to a new user.
type EmailVerificationIssuer interface {
	IssueEmailVerification(ctx context.Context, u *entity.User) error
}

// Handler exposes the registration endpoint.
type Handler struct {
	svc    *UserService
	issuer EmailVerificationIssuer
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, issuer EmailVerificationIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, issuer: issuer, logger: logger}
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse reports the created account. VerificationSent is false when
// the account exists but the first code could not be delivered.
type RegisterResponse struct {
	RegistrationSuccess bool   `json:"registration_success"`
	Message             string `json:"message"`
	Email               string `json:"email"`
	Username            string `json:"username"`
	VerificationSent    bool   `json:"verification_sent"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.CreateUser(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.logger.Debugw("register rejected", "kind", apperr.KindOf(err))
		httpx.WriteError(w, h.logger, err)
		return
	}

	sent := true
	if err := h.issuer.IssueEmailVerification(r.Context(), u); err != nil {
		sent = false
		// The account stays; the user can ask for a new code.
		if apperr.KindOf(err) == apperr.KindDeliveryFailed {
			h.logger.Warnw("verification code not delivered", "user_id", u.ID, "err", err)
		} else if !errors.Is(err, context.Canceled) {
			h.logger.Errorw("issue verification code", "user_id", u.ID, "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		RegistrationSuccess: true,
		Message:             "Account created successfully.",
		Email:               u.Email,
		Username:            u.Username,
		VerificationSent:    sent,
	})
}
