package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
)

type ids struct{ n int64 }

func (i *ids) NextID() int64 { i.n++; return i.n }

type engineFixture struct {
	engine  *auth.Engine
	tokens  *auth.TokenIssuer
	users   *user.UserService
	metrics *metrics.Metrics
}

func newEngine(t *testing.T) *engineFixture {
	t.Helper()
	iss, _, store := newIssuer(t)
	logger := zaptest.NewLogger(t).Sugar()
	hasher := user.BcryptHasher{Cost: 4}
	users := user.NewUserService(store, hasher, &ids{}, logger)
	m := metrics.New(prometheus.NewRegistry(), "test")
	e, err := auth.NewEngine(users, hasher, iss, m, logger)
	require.NoError(t, err)

	_, err = users.CreateUser(context.Background(), "dana@example.com", "dana", "correct-horse-9")
	require.NoError(t, err)
	return &engineFixture{engine: e, tokens: iss, users: users, metrics: m}
}

func TestLogin(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	for _, id := range []string{"dana", " DANA ", "dana@example.com", "Dana@Example.COM"} {
		u, pair, err := f.engine.Login(ctx, id, "correct-horse-9")
		require.NoError(t, err, id)
		assert.Equal(t, "dana", u.Username)
		assert.NotEmpty(t, pair.Access)
		assert.NotEmpty(t, pair.Refresh)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues(metrics.ResultOK)))
}

func TestLogin_FailuresShareOneError(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	cases := []struct{ identifier, password string }{
		{"ghost", "correct-horse-9"},
		{"ghost@example.com", "correct-horse-9"},
		{"dana", "wrong-horse-9"},
		{"", "correct-horse-9"},
		{"dana", ""},
	}
	for _, c := range cases {
		_, _, err := f.engine.Login(ctx, c.identifier, c.password)
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials), "%q: %v", c.identifier, err)
		assert.Equal(t, auth.ErrInvalidCredentials.Error(), err.Error())
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues(metrics.ResultRejected)))
}

func TestLogin_UpgradesHashCost(t *testing.T) {
	iss, _, store := newIssuer(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()

	weak := user.NewUserService(store, user.BcryptHasher{Cost: 4}, &ids{}, logger)
	_, err := weak.CreateUser(ctx, "erin@example.com", "erin", "correct-horse-9")
	require.NoError(t, err)

	stronger := user.BcryptHasher{Cost: 5}
	users := user.NewUserService(store, stronger, &ids{n: 100}, logger)
	e, err := auth.NewEngine(users, stronger, iss, nil, logger)
	require.NoError(t, err)

	_, _, err = e.Login(ctx, "erin", "correct-horse-9")
	require.NoError(t, err)
	u, err := users.FindByUsername(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt:5", u.PasswordAlgo)
}

func TestRefreshAndCurrentUser(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()
	_, pair, err := f.engine.Login(ctx, "dana", "correct-horse-9")
	require.NoError(t, err)

	next, err := f.engine.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, next.Refresh)

	_, err = f.engine.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	c, err := f.tokens.ParseAccess(next.Access)
	require.NoError(t, err)
	u, err := f.engine.CurrentUser(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", u.Email)

	require.NoError(t, f.engine.Revoke(ctx, next.Refresh))
	_, err = f.engine.Refresh(ctx, next.Refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokensIssued.WithLabelValues("refresh")))
}
