package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/entity"
)

// SessionRepo stores refresh sessions in `refresh_sessions`.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

var _ auth.SessionStore = (*SessionRepo)(nil)

func (r *SessionRepo) Save(ctx context.Context, s *entity.Session) error {
	const q = `INSERT INTO refresh_sessions (id, user_id, expires_at, created_at)
		VALUES (:id, :user_id, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, s); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Take deletes the session and returns it, so concurrent redemptions of one
// refresh token see at most one success.
func (r *SessionRepo) Take(ctx context.Context, id string) (*entity.Session, error) {
	const q = `DELETE FROM refresh_sessions WHERE id = $1 RETURNING id, user_id, expires_at, created_at`
	var s entity.Session
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
