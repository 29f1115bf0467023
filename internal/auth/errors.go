package auth

import "github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"

var (
	// ErrInvalidCredentials covers unknown identifiers, empty input and wrong
	// passwords alike.
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	ErrInvalidToken       = apperr.New(apperr.KindUnauthorized, "Token is invalid or expired")
	// ErrSessionNotFound is returned by session stores when no row matches.
	ErrSessionNotFound = apperr.New(apperr.KindNotFound, "session not found")
)
