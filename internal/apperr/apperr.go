// Package apperr defines the error kinds shared by the account services and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for callers that must decide how to surface it.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindInvalidCredentials
	KindInvalidCode
	KindCodeExpired
	KindAlreadyVerified
	KindDeliveryFailed
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindUnexpected:         "unexpected",
	KindValidation:         "validation",
	KindNotFound:           "not_found",
	KindInvalidCredentials: "invalid_credentials",
	KindInvalidCode:        "invalid_code",
	KindCodeExpired:        "code_expired",
	KindAlreadyVerified:    "already_verified",
	KindDeliveryFailed:     "delivery_failed",
	KindUnauthorized:       "unauthorized",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unexpected"
}

// Error carries a Kind, a client-safe message and optional field-level
// messages. Err holds the underlying cause and is never sent to clients.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so sentinel values
// survive wrapping through Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New returns a sentinel-style error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches a cause to a copy of sentinel, keeping errors.Is(result, sentinel) true.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Fields: sentinel.Fields, Err: cause}
}

// Validation builds a validation error from field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// KindOf reports the kind of err, or KindUnexpected when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// HTTPStatus maps a kind onto the status code used by the HTTP surface.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindInvalidCredentials, KindInvalidCode, KindCodeExpired, KindAlreadyVerified:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindDeliveryFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
