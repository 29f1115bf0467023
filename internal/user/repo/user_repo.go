package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

const (
	uniqueViolation = "23505"

	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

const userColumns = `id, email, username, password_hash, password_algo, password_updated_at,
	is_verified, is_staff, is_superuser, created_at, updated_at`

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

var _ user.Repository = (*UserRepo)(nil)

// Create inserts a new user row; created_at/updated_at are filled from the database.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, email, username, password_hash, password_algo, is_verified, is_staff, is_superuser)
		VALUES (:id, :email, :username, :password_hash, :password_algo, :is_verified, :is_staff, :is_superuser)
		RETURNING created_at, updated_at`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return mapWriteError(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mapWriteError(err)
		}
		return errors.New("insert user: no row returned")
	}
	if err := rows.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns a user matched by email (case-insensitive due to citext).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByUsername fetches by username (case-insensitive due to citext).
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &row, nil
}

// SetVerified flips is_verified to true in a single statement.
func (r *UserRepo) SetVerified(ctx context.Context, id int64) error {
	const q = `UPDATE users SET is_verified = true, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id)
}

// SetPasswordHash replaces the password hash and algorithm in a single statement.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id int64, hash, algo string) error {
	const q = `UPDATE users SET password_hash = $2, password_algo = $3, password_updated_at = NOW(), updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id, hash, algo)
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// mapWriteError turns unique violations into the user package's duplicate errors.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case emailConstraint:
			return user.ErrDuplicateEmail
		case usernameConstraint:
			return user.ErrDuplicateUsername
		}
	}
	return fmt.Errorf("db error: %w", err)
}
