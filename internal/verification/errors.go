package verification

import (
	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
)

var (
	// ErrCodeNotFound is returned by ledgers when the (user, purpose) pair has no row.
	ErrCodeNotFound    = apperr.New(apperr.KindNotFound, "verification code not found")
	ErrInvalidCode     = apperr.New(apperr.KindInvalidCode, "Invalid code")
	ErrCodeExpired     = apperr.New(apperr.KindCodeExpired, "Code expired")
	ErrAlreadyVerified = apperr.New(apperr.KindAlreadyVerified, "User is already verified.")
	// ErrNoResetRequest is returned by ResetPassword when no reset code was ever
	// issued for the user, or the user does not exist.
	ErrNoResetRequest = apperr.New(apperr.KindValidation, "Request a password reset code first before resetting")
	ErrDeliveryFailed = apperr.New(apperr.KindDeliveryFailed, "Could not send the verification email. Try again later")
	ErrUnknownPurpose = apperr.New(apperr.KindValidation, "unknown verification purpose")
)
