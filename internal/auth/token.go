package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/entity"
	userentity "github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/utilities"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// SessionStore persists refresh sessions. Take deletes and returns the row in
// one step so a refresh token can be redeemed only once.
type SessionStore interface {
	Save(ctx context.Context, s *entity.Session) error
	Take(ctx context.Context, id string) (*entity.Session, error)
	// DeleteByUser drops every session of userID and reports how many went.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// Claims is the payload of both token types; Type tells them apart.
type Claims struct {
	jwt.RegisteredClaims
	Type     string `json:"typ"`
	Username string `json:"username,omitempty"`
	Verified bool   `json:"email_verified,omitempty"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenConfig tunes a TokenIssuer. Zero TTLs pick the defaults.
type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clockwork.Clock
}

// TokenIssuer signs RS256 access and refresh tokens and tracks refresh sessions.
type TokenIssuer struct {
	key        *rsa.PrivateKey
	kid        string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
	sessions   SessionStore
	parser     *jwt.Parser
}

func NewTokenIssuer(key *rsa.PrivateKey, sessions SessionStore, cfg TokenConfig) (*TokenIssuer, error) {
	kid, err := keyID(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("key id: %w", err)
	}
	t := &TokenIssuer{
		key:        key,
		kid:        kid,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clock:      cfg.Clock,
		sessions:   sessions,
	}
	if t.accessTTL <= 0 {
		t.accessTTL = DefaultAccessTTL
	}
	if t.refreshTTL <= 0 {
		t.refreshTTL = DefaultRefreshTTL
	}
	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.clock.Now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	t.parser = jwt.NewParser(opts...)
	return t, nil
}

// Issue signs a new pair for u and records the refresh session.
func (t *TokenIssuer) Issue(ctx context.Context, u *userentity.User) (*TokenPair, error) {
	now := t.clock.Now().Truncate(time.Second)
	sub := strconv.FormatInt(u.ID, 10)

	access, err := t.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        utilities.NewKSUID(),
		},
		Type:     TypeAccess,
		Username: u.Username,
		Verified: u.IsVerified,
	})
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		ID:        utilities.NewKSUID(),
		UserID:    u.ID,
		ExpiresAt: now.Add(t.refreshTTL),
		CreatedAt: now,
	}
	if err := t.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	refresh, err := t.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			ID:        session.ID,
		},
		Type: TypeRefresh,
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *TokenIssuer) sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = t.kid
	s, err := tok.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return s, nil
}

func (t *TokenIssuer) parse(raw, typ string) (*Claims, error) {
	var c Claims
	_, err := t.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return &t.key.PublicKey, nil
	})
	if err != nil {
		return nil, err
	}
	if c.Type != typ {
		return nil, fmt.Errorf("token type %q, want %q", c.Type, typ)
	}
	if _, err := c.UserID(); err != nil {
		return nil, fmt.Errorf("bad subject: %w", err)
	}
	return &c, nil
}

// ParseAccess verifies an access token.
func (t *TokenIssuer) ParseAccess(raw string) (*Claims, error) {
	c, err := t.parse(raw, TypeAccess)
	if err != nil {
		return nil, wrapInvalid(err)
	}
	return c, nil
}

// Redeem verifies a refresh token and deletes its session, returning the
// user it was issued to. A second redemption of the same token fails.
func (t *TokenIssuer) Redeem(ctx context.Context, raw string) (int64, error) {
	c, err := t.parse(raw, TypeRefresh)
	if err != nil {
		return 0, wrapInvalid(err)
	}
	s, err := t.sessions.Take(ctx, c.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, wrapInvalid(err)
		}
		return 0, err
	}
	uid, _ := c.UserID()
	if s.UserID != uid || !t.clock.Now().Before(s.ExpiresAt) {
		return 0, ErrInvalidToken
	}
	return uid, nil
}

// Revoke deletes the session behind a refresh token. Tokens that do not
// verify or were already redeemed are ignored.
func (t *TokenIssuer) Revoke(ctx context.Context, raw string) error {
	c, err := t.parse(raw, TypeRefresh)
	if err != nil {
		return nil
	}
	if _, err := t.sessions.Take(ctx, c.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// RevokeUser ends every refresh session of userID. Access tokens already
// issued stay valid until they expire.
func (t *TokenIssuer) RevokeUser(ctx context.Context, userID int64) error {
	if _, err := t.sessions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions of user %d: %w", userID, err)
	}
	return nil
}

func wrapInvalid(err error) error {
	return apperr.Wrap(ErrInvalidToken, err)
}

// JWK is the public half of the signing key in RFC 7517 form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS publishes the verification key.
func (t *TokenIssuer) JWKS() JWKS {
	pub := t.key.PublicKey
	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Alg: jwt.SigningMethodRS256.Alg(),
		Kid: t.kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}
