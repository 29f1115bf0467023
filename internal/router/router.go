package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	BasePath       string
	RequestTimeout time.Duration
	Logger         *zap.SugaredLogger

	Users        *user.Handler
	Verification *verification.Handler
	Auth         *auth.Handler
	Tokens       *auth.TokenIssuer

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// RegisterRoutes mounts every endpoint under d.BasePath on a ServeMux and
// wraps it with the middleware chain.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	base := d.BasePath

	mux.HandleFunc("GET "+base+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		mux.Handle("GET "+base+"/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST "+base+"/register", d.Users.Register)
	mux.HandleFunc("POST "+base+"/login", d.Auth.Login)

	mux.HandleFunc("POST "+base+"/verify-email", d.Verification.VerifyEmail)
	mux.HandleFunc("POST "+base+"/resend-verification", d.Verification.ResendVerification)
	mux.HandleFunc("POST "+base+"/reset-password-request", d.Verification.RequestPasswordReset)
	mux.HandleFunc("PATCH "+base+"/reset-password", d.Verification.ResetPassword)

	mux.HandleFunc("POST "+base+"/token/refresh", d.Auth.Refresh)
	mux.HandleFunc("POST "+base+"/token/revoke", d.Auth.Revoke)
	mux.HandleFunc("GET "+base+"/.well-known/jwks.json", d.Auth.JWKS)
	mux.Handle("GET "+base+"/me", auth.RequireAuth(d.Tokens, d.Logger)(http.HandlerFunc(d.Auth.Me)))

	var h http.Handler = mux
	h = MetricsMiddleware(d.Metrics)(h)
	h = TimeoutMiddleware(d.RequestTimeout)(h)
	h = SecurityHeadersMiddleware()(h)
	h = LoggingMiddleware(d.Logger)(h)
	h = RequestIDMiddleware()(h)
	return h
}
