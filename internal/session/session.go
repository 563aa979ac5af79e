// Package session owns the client's authentication state: the persisted
// bearer token and a cached copy of the current user.
//
// A Session is built once by the caller and passed to whatever needs it;
// there is no package-level state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// DefaultUserTTL matches how long the user profile is considered fresh.
const DefaultUserTTL = 15 * time.Minute

type Session struct {
	tokens TokenStore
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	user      *model.User
	fetchedAt time.Time
}

func New(tokens TokenStore, userTTL time.Duration) *Session {
	if userTTL <= 0 {
		userTTL = DefaultUserTTL
	}
	return &Session{
		tokens: tokens,
		ttl:    userTTL,
		now:    time.Now,
	}
}

func (s *Session) Token() string {
	return s.tokens.Token()
}

// SetToken stores a fresh login and drops any user cached for the previous
// token.
func (s *Session) SetToken(token string) error {
	s.InvalidateUser()
	return s.tokens.SetToken(token)
}

// Clear forgets the token and the cached user. The API client calls it when
// the server answers 401.
func (s *Session) Clear() error {
	s.InvalidateUser()
	return s.tokens.Clear()
}

func (s *Session) Logout() error {
	return s.Clear()
}

// Authenticated reports whether a token is present and, when it is a JWT
// carrying an exp claim, not yet expired. The signature is not checked here;
// the server does that.
func (s *Session) Authenticated() bool {
	tok := s.tokens.Token()
	if tok == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		// Opaque token; let the server decide.
		return true
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return false
	}
	return true
}

// CurrentUser returns the cached user while it is fresh and calls fetch
// otherwise.
func (s *Session) CurrentUser(ctx context.Context, fetch func(context.Context) (model.User, error)) (model.User, error) {
	s.mu.Lock()
	if s.user != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		u := *s.user
		s.mu.Unlock()
		return u, nil
	}
	s.mu.Unlock()

	u, err := fetch(ctx)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	s.user = &u
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return u, nil
}

// InvalidateUser drops the cached user, e.g. after a profile update.
func (s *Session) InvalidateUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.fetchedAt = time.Time{}
}
