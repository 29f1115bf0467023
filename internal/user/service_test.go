package user

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

type fakeRepo struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func newFakeRepo() *fakeRepo { return &fakeRepo{users: map[int64]*entity.User{}} }

func (f *fakeRepo) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrDuplicateUsername
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.ID == id })
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return strings.EqualFold(u.Username, username) })
}

func (f *fakeRepo) SetVerified(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *fakeRepo) SetPasswordHash(_ context.Context, id int64, hash, algo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash, u.PasswordAlgo = hash, algo
	return nil
}

type seqIDs struct{ n int64 }

func (s *seqIDs) NextID() int64 { s.n++; return s.n }

func newTestService() (*UserService, *fakeRepo) {
	r := newFakeRepo()
	return NewUserService(r, BcryptHasher{Cost: 4}, &seqIDs{}, nil), r
}

func TestCreateUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "  Alice@Example.com ", "Alice_1", "correct-horse-9")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "alice_1", u.Username)
	assert.False(t, u.IsVerified)
	assert.NotEqual(t, "correct-horse-9", u.PasswordHash)
	assert.True(t, svc.Hasher().Verify(u.PasswordHash, "correct-horse-9"))
	assert.Equal(t, "bcrypt:4", u.PasswordAlgo)
}

func TestCreateUser_CaseInsensitiveConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "a@b.com", "first", "correct-horse-9")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "A@B.com", "second", "correct-horse-9")
	require.ErrorIs(t, err, ErrConflict)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{ErrDuplicateEmail.Message}, ae.Fields["email"])

	_, err = svc.CreateUser(ctx, "c@d.com", "FIRST", "correct-horse-9")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{ErrDuplicateUsername.Message}, ae.Fields["username"])
}

// The repository constraint is the last word when two registrations race past
// the friendly pre-check.
type racingRepo struct {
	*fakeRepo
}

func (r racingRepo) GetByEmail(context.Context, string) (*entity.User, error) {
	return nil, ErrNotFound
}

func TestCreateUser_ConstraintConflict(t *testing.T) {
	base := newFakeRepo()
	svc := NewUserService(racingRepo{base}, BcryptHasher{Cost: 4}, &seqIDs{}, nil)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "a@b.com", "first", "correct-horse-9")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "a@b.com", "second", "correct-horse-9")
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateUser_Validation(t *testing.T) {
	svc, r := newTestService()

	_, err := svc.CreateUser(context.Background(), "not-an-email", "x", "123")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Fields, "email")
	assert.Contains(t, ae.Fields, "username")
	assert.Contains(t, ae.Fields, "password")
	assert.Empty(t, r.users)
}

func TestChangePassword(t *testing.T) {
	svc, r := newTestService()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, "a@b.com", "alice", "correct-horse-9")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u, "12345678")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "new_password")
	assert.True(t, svc.Hasher().Verify(r.users[u.ID].PasswordHash, "correct-horse-9"))

	require.NoError(t, svc.ChangePassword(ctx, u, "battery-staple-7"))
	assert.True(t, svc.Hasher().Verify(r.users[u.ID].PasswordHash, "battery-staple-7"))
}

func TestUpgradeHash(t *testing.T) {
	r := newFakeRepo()
	old := NewUserService(r, BcryptHasher{Cost: 4}, &seqIDs{}, nil)
	ctx := context.Background()
	u, err := old.CreateUser(ctx, "a@b.com", "alice", "correct-horse-9")
	require.NoError(t, err)

	svc := NewUserService(r, BcryptHasher{Cost: 5}, &seqIDs{n: 100}, nil)
	svc.UpgradeHash(ctx, u, "correct-horse-9")

	assert.Equal(t, "bcrypt:5", r.users[u.ID].PasswordAlgo)
	assert.True(t, svc.Hasher().Verify(r.users[u.ID].PasswordHash, "correct-horse-9"))
}

func TestSetVerified(t *testing.T) {
	svc, r := newTestService()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, "a@b.com", "alice", "correct-horse-9")
	require.NoError(t, err)

	require.NoError(t, svc.SetVerified(ctx, u.ID))
	assert.True(t, r.users[u.ID].IsVerified)
	assert.ErrorIs(t, svc.SetVerified(ctx, 999), ErrNotFound)
}
