// Package memstore keeps users, verification codes and refresh sessions in
// process memory. It backs STORE_DRIVER=memory and the HTTP tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	authentity "github.com/ovaphlow/pitchfork/service-account-go/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification/entity"
)

type codeKey struct {
	userID  int64
	purpose entity.Purpose
}

// Store is safe for concurrent use. Values are copied in and out so callers
// never share memory with the store.
type Store struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	users    map[int64]*userentity.User
	codes    map[codeKey]*entity.Code
	sessions map[string]*authentity.Session
	nextCode int64
}

func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		users:    map[int64]*userentity.User{},
		codes:    map[codeKey]*entity.Code{},
		sessions: map[string]*authentity.Session{},
	}
}

var (
	_ user.Repository     = (*Store)(nil)
	_ verification.Ledger = (*Store)(nil)
	_ auth.SessionStore   = (*Store)(nil)
)

func (s *Store) Create(_ context.Context, u *userentity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return user.ErrDuplicateUsername
		}
	}
	now := s.clock.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) findUser(match func(*userentity.User) bool) (*userentity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *Store) GetByID(_ context.Context, id int64) (*userentity.User, error) {
	return s.findUser(func(u *userentity.User) bool { return u.ID == id })
}

func (s *Store) GetByEmail(_ context.Context, email string) (*userentity.User, error) {
	return s.findUser(func(u *userentity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetByUsername(_ context.Context, username string) (*userentity.User, error) {
	return s.findUser(func(u *userentity.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *Store) updateUser(id int64, fn func(*userentity.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) SetVerified(_ context.Context, id int64) error {
	return s.updateUser(id, func(u *userentity.User) { u.IsVerified = true })
}

func (s *Store) SetPasswordHash(_ context.Context, id int64, hash, algo string) error {
	now := s.clock.Now()
	return s.updateUser(id, func(u *userentity.User) {
		u.PasswordHash, u.PasswordAlgo, u.PasswordUpdatedAt = hash, algo, &now
	})
}

func copyCode(c *entity.Code) *entity.Code {
	cp := *c
	if c.Code != nil {
		v := *c.Code
		cp.Code = &v
	}
	return &cp
}

func (s *Store) UpsertCode(_ context.Context, userID int64, purpose entity.Purpose, code int, ttl time.Duration) (*entity.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, user.ErrNotFound
	}
	now := s.clock.Now()
	k := codeKey{userID, purpose}
	row, ok := s.codes[k]
	if !ok {
		s.nextCode++
		row = &entity.Code{ID: s.nextCode, UserID: userID, Purpose: purpose}
		s.codes[k] = row
	}
	v := code
	row.Code = &v
	row.CreatedAt = now
	row.ExpiresAt = now.Add(ttl)
	return copyCode(row), nil
}

func (s *Store) GetCode(_ context.Context, userID int64, purpose entity.Purpose) (*entity.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.codes[codeKey{userID, purpose}]
	if !ok {
		return nil, verification.ErrCodeNotFound
	}
	return copyCode(row), nil
}

func (s *Store) Consume(_ context.Context, userID int64, purpose entity.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.codes[codeKey{userID, purpose}]; ok {
		row.Code = nil
	}
	return nil
}

func (s *Store) ClaimCode(_ context.Context, userID int64, purpose entity.Purpose, code int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.codes[codeKey{userID, purpose}]
	if !ok || row.Code == nil || *row.Code != code {
		return false, nil
	}
	row.Code = nil
	return true, nil
}

func (s *Store) Save(_ context.Context, sess *authentity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *Store) Take(_ context.Context, id string) (*authentity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return sess, nil
}

func (s *Store) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
