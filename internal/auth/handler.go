package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// Handler exposes login, token and profile endpoints.
type Handler struct {
	engine *Engine
	tokens *TokenIssuer
	logger *zap.SugaredLogger
}

func NewHandler(engine *Engine, tokens *TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{engine: engine, tokens: tokens, logger: logger}
}

// LoginRequest carries an email or username in Identifier. Missing fields are
// reported as bad credentials rather than field errors.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Refresh  string         `json:"refresh"`
	Access   string         `json:"access"`
	UserData entity.Summary `json:"user_data"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, pair, err := h.engine.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{Refresh: pair.Refresh, Access: pair.Access, UserData: u.Summary()})
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	pair, err := h.engine.Refresh(r.Context(), req.Refresh)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// Revoke answers 200 whether or not the token named a live session.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.engine.Revoke(r.Context(), req.Refresh); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Token revoked.")
}

func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, h.tokens.JWKS())
}

// Me returns the caller's summary. It must run behind RequireAuth.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, ErrInvalidToken)
		return
	}
	u, err := h.engine.CurrentUser(r.Context(), c)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u.Summary())
}
