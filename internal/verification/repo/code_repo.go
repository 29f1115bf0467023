package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification/entity"
)

const codeColumns = `id, user_id, purpose, code, created_at, expires_at`

// CodeRepo is the PostgreSQL verification ledger.
type CodeRepo struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

func NewCodeRepo(db *sqlx.DB, clock clockwork.Clock) *CodeRepo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CodeRepo{db: db, clock: clock}
}

var _ verification.Ledger = (*CodeRepo)(nil)

// UpsertCode writes the pair's only row, overwriting code, created_at and
// expires_at when one already exists.
func (r *CodeRepo) UpsertCode(ctx context.Context, userID int64, purpose entity.Purpose, code int, ttl time.Duration) (*entity.Code, error) {
	const q = `INSERT INTO verification_codes (user_id, purpose, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, purpose) DO UPDATE
		SET code = EXCLUDED.code, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		RETURNING ` + codeColumns
	now := r.clock.Now().UTC()
	var row entity.Code
	if err := r.db.GetContext(ctx, &row, q, userID, string(purpose), code, now, now.Add(ttl)); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &row, nil
}

func (r *CodeRepo) GetCode(ctx context.Context, userID int64, purpose entity.Purpose) (*entity.Code, error) {
	const q = `SELECT ` + codeColumns + ` FROM verification_codes WHERE user_id = $1 AND purpose = $2`
	var row entity.Code
	if err := r.db.GetContext(ctx, &row, q, userID, string(purpose)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, verification.ErrCodeNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &row, nil
}

// Consume nulls the stored code. Missing rows and cleared codes are not errors.
func (r *CodeRepo) Consume(ctx context.Context, userID int64, purpose entity.Purpose) error {
	const q = `UPDATE verification_codes SET code = NULL WHERE user_id = $1 AND purpose = $2`
	if _, err := r.db.ExecContext(ctx, q, userID, string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ClaimCode nulls the stored code only while it still equals code.
func (r *CodeRepo) ClaimCode(ctx context.Context, userID int64, purpose entity.Purpose, code int) (bool, error) {
	const q = `UPDATE verification_codes SET code = NULL WHERE user_id = $1 AND purpose = $2 AND code = $3`
	res, err := r.db.ExecContext(ctx, q, userID, string(purpose), code)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
