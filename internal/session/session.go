// Package session holds the signed-in identity of one viewer and notifies
// subscribers when it changes.
package session

import (
	"context"
	"sync"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
)

// Identity is an authenticated user. UID is the auth provider's id, UserID
// the row id in the users table (empty until the user row is ensured).
type Identity struct {
	UID         string `json:"uid"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Provider is the external identity service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	VerifyToken(ctx context.Context, idToken string) (*Identity, error)
	SignOut(ctx context.Context, uid string) error
}

// Source is the read side consumers such as the ranking engine depend on.
type Source interface {
	CurrentUser() (Identity, bool)
}

type Session struct {
	provider Provider

	mu      sync.Mutex
	current *Identity
	nextSub int
	subs    map[int]func(*Identity)
}

func New(provider Provider) *Session {
	return &Session{
		provider: provider,
		subs:     make(map[int]func(*Identity)),
	}
}

func (s *Session) CurrentUser() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// OnChange registers fn to be called with the new identity (nil after sign
// out) whenever it changes. The returned func unsubscribes.
func (s *Session) OnChange(fn func(*Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Assume sets an identity that was verified elsewhere.
func (s *Session) Assume(id *Identity) {
	s.set(id)
}

func (s *Session) SignIn(ctx context.Context, idToken string) (*Identity, error) {
	if s.provider == nil {
		return nil, apperr.ErrRequiresAuthentication
	}
	id, err := s.provider.VerifyToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	s.set(id)
	return id, nil
}

func (s *Session) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if s.provider == nil {
		return nil, apperr.ErrRequiresAuthentication
	}
	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.set(id)
	return id, nil
}

func (s *Session) SignOut(ctx context.Context) error {
	cur, ok := s.CurrentUser()
	if !ok {
		return nil
	}
	if s.provider != nil {
		if err := s.provider.SignOut(ctx, cur.UID); err != nil {
			return err
		}
	}
	s.set(nil)
	return nil
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	if sameIdentity(s.current, id) {
		if id != nil {
			cp := *id
			s.current = &cp
		}
		s.mu.Unlock()
		return
	}

	var next *Identity
	if id != nil {
		cp := *id
		next = &cp
	}
	s.current = next

	subs := make([]func(*Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID && a.UserID == b.UserID
}
