package user

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// Repository is the persistence contract of the credential store.
// Lookups return ErrNotFound; Create returns ErrDuplicateEmail or
// ErrDuplicateUsername when a unique constraint fires.
type Repository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	SetVerified(ctx context.Context, id int64) error
	SetPasswordHash(ctx context.Context, id int64, hash, algo string) error
}

// IDGenerator produces user IDs.
type IDGenerator interface {
	NextID() int64
}

// ErrConflict marks a registration rejected because the email or username is taken.
var ErrConflict = apperr.New(apperr.KindValidation, "user already exists")

// UserService owns user records: creation, lookups and credential updates.
type UserService struct {
	repo   Repository
	hasher PasswordHasher
	ids    IDGenerator
	logger *zap.SugaredLogger
}

func NewUserService(r Repository, hasher PasswordHasher, ids IDGenerator, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{repo: r, hasher: hasher, ids: ids, logger: logger}
}

// Hasher exposes the configured password hasher to the auth engine.
func (s *UserService) Hasher() PasswordHasher { return s.hasher }

// CreateUser validates and stores a new unverified user. The raw password is
// hashed before it reaches the repository and is not retained.
func (s *UserService) CreateUser(ctx context.Context, email, username, password string) (*entity.User, error) {
	email = NormalizeEmail(email)
	username = NormalizeUsername(username)

	fields := map[string][]string{}
	if msgs := CheckEmail(email); msgs != nil {
		fields["email"] = msgs
	}
	if msgs := CheckUsername(username); msgs != nil {
		fields["username"] = msgs
	}
	if msgs := CheckPassword(password, username, email); msgs != nil {
		fields["password"] = msgs
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	// Friendly field messages; the unique constraints still decide races.
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		fields["email"] = []string{ErrDuplicateEmail.Message}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		fields["username"] = []string{ErrDuplicateUsername.Message}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if len(fields) > 0 {
		return nil, conflict(fields, nil)
	}

	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		ID:           s.ids.NextID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		PasswordAlgo: algo,
		IsVerified:   false,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, conflict(map[string][]string{"email": {ErrDuplicateEmail.Message}}, err)
		case errors.Is(err, ErrDuplicateUsername):
			return nil, conflict(map[string][]string{"username": {ErrDuplicateUsername.Message}}, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Infow("user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func conflict(fields map[string][]string, cause error) *apperr.Error {
	return &apperr.Error{Kind: ErrConflict.Kind, Message: ErrConflict.Message, Fields: fields, Err: cause}
}

// FindByEmail resolves a user by email, case-insensitively.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// FindByUsername resolves a user by username, case-insensitively.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return s.repo.GetByUsername(ctx, NormalizeUsername(username))
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) SetVerified(ctx context.Context, id int64) error {
	if err := s.repo.SetVerified(ctx, id); err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	s.logger.Infow("user verified", "user_id", id)
	return nil
}

// ValidatePassword applies the password policy to a replacement password for u.
func (s *UserService) ValidatePassword(u *entity.User, raw string) error {
	if msgs := CheckPassword(raw, u.Username, u.Email); msgs != nil {
		return apperr.Validation(map[string][]string{"new_password": msgs})
	}
	return nil
}

// ChangePassword is the only path that mutates a stored password hash.
func (s *UserService) ChangePassword(ctx context.Context, u *entity.User, raw string) error {
	if err := s.ValidatePassword(u, raw); err != nil {
		return err
	}
	return s.storePassword(ctx, u.ID, raw)
}

// UpgradeHash re-hashes a password that was verified against an outdated hash.
// It is best-effort: failures are logged, never returned.
func (s *UserService) UpgradeHash(ctx context.Context, u *entity.User, raw string) {
	if !s.hasher.NeedsRehash(u.PasswordHash) {
		return
	}
	if err := s.storePassword(ctx, u.ID, raw); err != nil {
		s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
	}
}

func (s *UserService) storePassword(ctx context.Context, id int64, raw string) error {
	hash, algo, err := s.hasher.Hash(raw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, id, hash, algo); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.logger.Infow("password updated", "user_id", id)
	return nil
}
