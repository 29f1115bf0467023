package entity

import "time"

// User represents an account row in the `users` table.
// Email and Username are stored lower-cased; both columns are citext.
type User struct {
	ID                int64      `db:"id"`
	Email             string     `db:"email"`
	Username          string     `db:"username"`
	PasswordHash      string     `db:"password_hash"`
	PasswordAlgo      string     `db:"password_algo"`
	PasswordUpdatedAt *time.Time `db:"password_updated_at"`
	IsVerified        bool       `db:"is_verified"`
	IsStaff           bool       `db:"is_staff"`
	IsSuperuser       bool       `db:"is_superuser"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Summary is the public projection returned to clients after login.
type Summary struct {
	ID          int64  `json:"id,string"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}

// Summary projects u for responses; it never carries password material.
func (u *User) Summary() Summary {
	return Summary{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsVerified:  u.IsVerified,
	}
}
