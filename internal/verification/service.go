// Package verification issues, validates and consumes the one-time codes that
// gate email verification and password reset.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification/entity"
)

// DefaultTTL is how long an issued code stays redeemable.
const DefaultTTL = 15 * time.Minute

// Ledger stores at most one code per (user, purpose).
type Ledger interface {
	// UpsertCode replaces the pair's code and restarts its expiry window.
	UpsertCode(ctx context.Context, userID int64, purpose entity.Purpose, code int, ttl time.Duration) (*entity.Code, error)
	// GetCode returns ErrCodeNotFound when the pair has no row.
	GetCode(ctx context.Context, userID int64, purpose entity.Purpose) (*entity.Code, error)
	// Consume clears the stored code. Consuming an already cleared code is a no-op.
	Consume(ctx context.Context, userID int64, purpose entity.Purpose) error
	// ClaimCode clears the stored code only if it still equals code, and
	// reports whether it did.
	ClaimCode(ctx context.Context, userID int64, purpose entity.Purpose, code int) (bool, error)
}

// Credentials is the slice of the credential store the state machine needs.
type Credentials interface {
	FindByEmail(ctx context.Context, email string) (*userentity.User, error)
	GetByID(ctx context.Context, id int64) (*userentity.User, error)
	SetVerified(ctx context.Context, id int64) error
	ValidatePassword(u *userentity.User, raw string) error
	ChangePassword(ctx context.Context, u *userentity.User, raw string) error
}

// CodeGenerator produces code values in [0, CodeSpace).
type CodeGenerator interface {
	Generate() (int, error)
}

// SessionRevoker ends the refresh sessions of a user whose password changed.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Config carries the optional collaborators of Service. Zero values pick the
// defaults: a real clock, crypto/rand codes and DefaultTTL. A nil Sessions
// leaves existing sessions alone after a reset.
type Config struct {
	TTL       time.Duration
	Clock     clockwork.Clock
	Generator CodeGenerator
	Metrics   *metrics.Metrics
	Sessions  SessionRevoker
}

// Service is the verification state machine. Per (user, purpose) a code moves
// NoCode -> Active -> Consumed or Expired, and back to Active only through
// Request or Resend.
type Service struct {
	ledger   Ledger
	users    Credentials
	notifier notify.Notifier
	gen      CodeGenerator
	clock    clockwork.Clock
	ttl      time.Duration
	metrics  *metrics.Metrics
	sessions SessionRevoker
	logger   *zap.SugaredLogger
}

func NewService(ledger Ledger, users Credentials, notifier notify.Notifier, cfg Config, logger *zap.SugaredLogger) *Service {
	s := &Service{
		ledger:   ledger,
		users:    users,
		notifier: notifier,
		gen:      cfg.Generator,
		clock:    cfg.Clock,
		ttl:      cfg.TTL,
		metrics:  cfg.Metrics,
		sessions: cfg.Sessions,
		logger:   logger,
	}
	if s.gen == nil {
		s.gen = NewGenerator()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	return s
}

// Request issues a fresh code for userID and sends it. Email verification is
// refused for users that are already verified.
func (s *Service) Request(ctx context.Context, userID int64, purpose entity.Purpose) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.request(ctx, u, purpose)
}

// Resend replaces any previous code for the pair with a new one.
func (s *Service) Resend(ctx context.Context, userID int64, purpose entity.Purpose) error {
	return s.Request(ctx, userID, purpose)
}

func (s *Service) request(ctx context.Context, u *userentity.User, purpose entity.Purpose) error {
	if !purpose.Valid() {
		return ErrUnknownPurpose
	}
	if purpose == entity.PurposeEmailVerify && u.IsVerified {
		return ErrAlreadyVerified
	}
	code, err := s.gen.Generate()
	if err != nil {
		return err
	}
	if _, err := s.ledger.UpsertCode(ctx, u.ID, purpose, code, s.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	s.metrics.CodeIssued(string(purpose))
	s.logger.Infow("verification code issued", "user_id", u.ID, "purpose", purpose)

	// The stored code stays valid even when delivery fails.
	subject, body := render(purpose, code, s.ttl)
	if err := s.notifier.Send(ctx, u.Email, subject, body); err != nil {
		return apperr.Wrap(ErrDeliveryFailed, err)
	}
	return nil
}

// Validate checks submitted against the stored code without consuming it.
// Existence is checked first, then equality, then expiry.
func (s *Service) Validate(ctx context.Context, userID int64, purpose entity.Purpose, submitted int) (*entity.Code, error) {
	row, err := s.ledger.GetCode(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			s.metrics.CodeChecked(string(purpose), metrics.ResultMissing)
		}
		return nil, err
	}
	if err := s.check(row, submitted); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) check(row *entity.Code, submitted int) error {
	purpose := string(row.Purpose)
	if row.Code == nil || subtle.ConstantTimeCompare([]byte(Format(*row.Code)), []byte(Format(submitted))) != 1 {
		s.metrics.CodeChecked(purpose, metrics.ResultInvalid)
		return ErrInvalidCode
	}
	if row.IsExpired(s.clock.Now()) {
		s.metrics.CodeChecked(purpose, metrics.ResultExpired)
		return ErrCodeExpired
	}
	return nil
}

// redeem checks and consumes the code in one step. Losing a race against a
// concurrent redemption reads as an invalid code.
func (s *Service) redeem(ctx context.Context, row *entity.Code, submitted int) error {
	if err := s.check(row, submitted); err != nil {
		return err
	}
	claimed, err := s.ledger.ClaimCode(ctx, row.UserID, row.Purpose, submitted)
	if err != nil {
		return fmt.Errorf("claim code: %w", err)
	}
	if !claimed {
		s.metrics.CodeChecked(string(row.Purpose), metrics.ResultInvalid)
		return ErrInvalidCode
	}
	s.metrics.CodeChecked(string(row.Purpose), metrics.ResultOK)
	return nil
}

// IssueEmailVerification sends the first verification code to a newly
// registered user.
func (s *Service) IssueEmailVerification(ctx context.Context, u *userentity.User) error {
	return s.request(ctx, u, entity.PurposeEmailVerify)
}

// VerifyEmail consumes an email-verification code and marks the user verified.
func (s *Service) VerifyEmail(ctx context.Context, email string, code int) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	row, err := s.ledger.GetCode(ctx, u.ID, entity.PurposeEmailVerify)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}
	if err := s.redeem(ctx, row, code); err != nil {
		return err
	}
	if err := s.users.SetVerified(ctx, u.ID); err != nil {
		return err
	}
	s.logger.Infow("email verified", "user_id", u.ID)
	return nil
}

// ResendEmailVerification issues a new email-verification code to the owner of email.
func (s *Service) ResendEmailVerification(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.request(ctx, u, entity.PurposeEmailVerify)
}

// RequestPasswordReset issues a password-reset code to the owner of email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.request(ctx, u, entity.PurposePasswordReset)
}

// ResetPassword consumes a password-reset code and replaces the password. A
// successful reset also proves ownership of the email, so the user becomes
// verified. Refresh sessions opened with the old password are revoked.
func (s *Service) ResetPassword(ctx context.Context, email string, code int, newPassword string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.Wrap(ErrNoResetRequest, err)
		}
		return err
	}
	if err := s.users.ValidatePassword(u, newPassword); err != nil {
		return err
	}
	row, err := s.ledger.GetCode(ctx, u.ID, entity.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			s.metrics.CodeChecked(string(entity.PurposePasswordReset), metrics.ResultMissing)
			return apperr.Wrap(ErrNoResetRequest, err)
		}
		return err
	}
	if err := s.redeem(ctx, row, code); err != nil {
		return err
	}
	if err := s.users.ChangePassword(ctx, u, newPassword); err != nil {
		return err
	}
	if !u.IsVerified {
		if err := s.users.SetVerified(ctx, u.ID); err != nil {
			return err
		}
		// An outstanding email code has nothing left to prove.
		if err := s.ledger.Consume(ctx, u.ID, entity.PurposeEmailVerify); err != nil {
			s.logger.Warnw("consume email code", "user_id", u.ID, "err", err)
		}
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, u.ID); err != nil {
			return err
		}
	}
	s.logger.Infow("password reset", "user_id", u.ID)
	return nil
}
