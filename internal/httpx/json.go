// Package httpx holds the JSON request/response helpers shared by handlers.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
)

const maxBodyBytes = 1 << 20

// ErrInvalidPayload is returned when the body is not valid JSON for the target type.
var ErrInvalidPayload = apperr.New(apperr.KindValidation, "invalid payload")

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes {"detail": msg} with the given status.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Detail: msg})
}

// WriteError maps err onto a status via its apperr kind. Unexpected errors are
// logged and answered with a generic message.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindUnexpected {
		logger.Errorw("request failed", "err", err)
		WriteDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ae.Kind == apperr.KindDeliveryFailed {
		logger.Warnw("delivery failed", "err", err)
	}
	WriteJSON(w, apperr.HTTPStatus(ae.Kind), ErrorBody{Detail: ae.Message, Errors: ae.Fields})
}

// Decode reads a JSON body into dst and validates it with the struct's
// `validate` tags. Failures are apperr validation errors.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(ErrInvalidPayload, err)
	}
	return Validate(dst)
}

// Digits accepts a JSON number or a string of digits, so a code can be sent
// as 4213 or "004213". Validate with the `number` tag.
type Digits string

func (d *Digits) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Digits(strings.TrimSpace(s))
		return nil
	}
	if string(b) == "null" {
		*d = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Digits(n.String())
	return nil
}

// Int converts validated digits to an int.
func (d Digits) Int() (int, error) {
	return strconv.Atoi(string(d))
}
