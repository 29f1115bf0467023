package entity

import "time"

// Purpose tags what a code authorises.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePasswordReset Purpose = "password_reset"
)

func (p Purpose) Valid() bool {
	return p == PurposeEmailVerify || p == PurposePasswordReset
}

// Code is the single `verification_codes` row for a (user, purpose) pair.
// A nil Code means the last issued value was consumed.
type Code struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Purpose   Purpose   `db:"purpose"`
	Code      *int      `db:"code"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// IsExpired reports whether now is at or past the expiry instant.
func (c *Code) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Active reports whether the code can still be redeemed at now.
func (c *Code) Active(now time.Time) bool {
	return c.Code != nil && !c.IsExpired(now)
}
