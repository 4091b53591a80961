package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
)

// DevProvider accepts any non-empty token as the uid itself.
// Use this ONLY for development/testing.
type DevProvider struct{}

func (DevProvider) SignUp(_ context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(password) < 6 {
		return nil, fmt.Errorf("%w: email and a password of at least 6 characters are required", apperr.ErrInvalidInput)
	}
	return &Identity{UID: "dev-" + strings.ToLower(email), Email: email}, nil
}

func (DevProvider) VerifyToken(_ context.Context, idToken string) (*Identity, error) {
	uid := strings.TrimSpace(idToken)
	if uid == "" {
		return nil, apperr.ErrRequiresAuthentication
	}
	return &Identity{UID: uid, Email: uid + "@dev.local"}, nil
}

func (DevProvider) SignOut(context.Context, string) error { return nil }
