package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	authentity "github.com/ovaphlow/pitchfork/service-account-go/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification/entity"
)

var t0 = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func seeded(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	s := New(clock)
	require.NoError(t, s.Create(context.Background(), &userentity.User{ID: 1, Email: "a@b.com", Username: "alice"}))
	return s, clock
}

func TestUsers(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Create(ctx, &userentity.User{ID: 2, Email: "A@B.com", Username: "bob"}), user.ErrDuplicateEmail)
	assert.ErrorIs(t, s.Create(ctx, &userentity.User{ID: 2, Email: "c@d.com", Username: "ALICE"}), user.ErrDuplicateUsername)

	u, err := s.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, t0, u.CreatedAt)

	u.IsVerified = true // mutating a copy must not leak into the store
	got, err := s.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, got.IsVerified)

	require.NoError(t, s.SetVerified(ctx, 1))
	require.NoError(t, s.SetPasswordHash(ctx, 1, "h", "bcrypt:4"))
	got, err = s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.Equal(t, "h", got.PasswordHash)
	require.NotNil(t, got.PasswordUpdatedAt)

	_, err = s.GetByID(ctx, 99)
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.ErrorIs(t, s.SetVerified(ctx, 99), user.ErrNotFound)
}

func TestUpsertCode_Replaces(t *testing.T) {
	s, clock := seeded(t)
	ctx := context.Background()

	first, err := s.UpsertCode(ctx, 1, entity.PurposeEmailVerify, 111111, 15*time.Minute)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	second, err := s.UpsertCode(ctx, 1, entity.PurposeEmailVerify, 222222, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, err := s.GetCode(ctx, 1, entity.PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, 222222, *got.Code)
	assert.Equal(t, t0.Add(20*time.Minute), got.ExpiresAt)
	assert.Len(t, s.codes, 1)

	_, err = s.GetCode(ctx, 1, entity.PurposePasswordReset)
	assert.ErrorIs(t, err, verification.ErrCodeNotFound)

	_, err = s.UpsertCode(ctx, 42, entity.PurposeEmailVerify, 1, time.Minute)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestConsumeAndClaim(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	_, err := s.UpsertCode(ctx, 1, entity.PurposePasswordReset, 4242, time.Minute)
	require.NoError(t, err)

	ok, err := s.ClaimCode(ctx, 1, entity.PurposePasswordReset, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Consume(ctx, 1, entity.PurposePasswordReset))
	require.NoError(t, s.Consume(ctx, 1, entity.PurposePasswordReset))
	require.NoError(t, s.Consume(ctx, 1, entity.PurposeEmailVerify))

	row, err := s.GetCode(ctx, 1, entity.PurposePasswordReset)
	require.NoError(t, err)
	assert.Nil(t, row.Code, "row persists after consumption")
}

func TestClaimCode_SingleWinner(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	_, err := s.UpsertCode(ctx, 1, entity.PurposeEmailVerify, 777777, time.Minute)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.ClaimCode(ctx, 1, entity.PurposeEmailVerify, 777777); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSessions(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &authentity.Session{ID: "k1", UserID: 1, ExpiresAt: t0.Add(time.Hour)}))

	got, err := s.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)

	_, err = s.Take(ctx, "k1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestDeleteByUser(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	for _, sess := range []authentity.Session{
		{ID: "k1", UserID: 1}, {ID: "k2", UserID: 1}, {ID: "k3", UserID: 2},
	} {
		require.NoError(t, s.Save(ctx, &sess))
	}

	n, err := s.DeleteByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.Take(ctx, "k1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	_, err = s.Take(ctx, "k3")
	assert.NoError(t, err)
}
