package user

import "github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"

var (
	// ErrNotFound is returned by repositories and lookups when no user matches.
	ErrNotFound = apperr.New(apperr.KindNotFound, "user not found")
	// ErrDuplicateEmail and ErrDuplicateUsername are returned by repositories
	// when a unique constraint rejects an insert.
	ErrDuplicateEmail    = apperr.New(apperr.KindValidation, "user with this email already exists")
	ErrDuplicateUsername = apperr.New(apperr.KindValidation, "user with this username already exists")
)
