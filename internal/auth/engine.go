// Package auth authenticates users by password and issues RS256 tokens.
package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// Users is the part of the credential store the engine reads.
type Users interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	UpgradeHash(ctx context.Context, u *entity.User, raw string)
}

// Engine decides logins and token refreshes.
type Engine struct {
	users     Users
	hasher    user.PasswordHasher
	tokens    *TokenIssuer
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	dummyHash string
}

// NewEngine hashes a throwaway password up front so that lookups of unknown
// identifiers spend the same bcrypt work as real ones.
func NewEngine(users Users, hasher user.PasswordHasher, tokens *TokenIssuer, m *metrics.Metrics, logger *zap.SugaredLogger) (*Engine, error) {
	dummy, _, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{users: users, hasher: hasher, tokens: tokens, metrics: m, logger: logger, dummyHash: dummy}, nil
}

// Login resolves identifier as an email when it contains '@', otherwise as a
// username, and checks the password. Every failure is ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, identifier, password string) (*entity.User, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		e.metrics.LoginAttempt(metrics.ResultRejected)
		return nil, nil, ErrInvalidCredentials
	}

	var (
		u   *entity.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = e.users.FindByEmail(ctx, identifier)
	} else {
		u, err = e.users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, nil, err
		}
		e.hasher.Verify(e.dummyHash, password)
		e.metrics.LoginAttempt(metrics.ResultRejected)
		return nil, nil, ErrInvalidCredentials
	}
	if !e.hasher.Verify(u.PasswordHash, password) {
		e.metrics.LoginAttempt(metrics.ResultRejected)
		e.logger.Debugw("login rejected", "user_id", u.ID)
		return nil, nil, ErrInvalidCredentials
	}
	e.users.UpgradeHash(ctx, u, password)

	pair, err := e.tokens.Issue(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	e.metrics.LoginAttempt(metrics.ResultOK)
	e.metrics.TokenIssued("password")
	e.logger.Infow("login", "user_id", u.ID)
	return u, pair, nil
}

// Refresh rotates a refresh token: the presented one is spent and a new pair
// is issued.
func (e *Engine) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	uid, err := e.tokens.Redeem(ctx, refresh)
	if err != nil {
		return nil, err
	}
	u, err := e.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	pair, err := e.tokens.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	e.metrics.TokenIssued("refresh")
	return pair, nil
}

// Revoke ends the session behind a refresh token.
func (e *Engine) Revoke(ctx context.Context, refresh string) error {
	return e.tokens.Revoke(ctx, refresh)
}

// CurrentUser loads the user an access token was issued to.
func (e *Engine) CurrentUser(ctx context.Context, c *Claims) (*entity.User, error) {
	uid, err := c.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := e.users.GetByID(ctx, uid)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}
