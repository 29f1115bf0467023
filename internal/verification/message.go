package verification

import (
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification/entity"
)

var subjects = map[entity.Purpose]string{
	entity.PurposeEmailVerify:   "Verify your email address",
	entity.PurposePasswordReset: "Your password reset code",
}

func render(purpose entity.Purpose, code int, ttl time.Duration) (subject, html string) {
	html = fmt.Sprintf("<p>Here is the verification code you requested: <strong>%s</strong></p>"+
		"<p>It expires in %d minutes. If you did not ask for it, ignore this email.</p>",
		Format(code), int(ttl.Minutes()))
	return subjects[purpose], html
}
