package http

import (
	"context"

	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/users"
)

type UserReader interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// ViewDiscarder drops per-user cached state on sign out.
type ViewDiscarder interface {
	Discard(userID string)
}

type Handler struct {
	resolver *auth.Resolver
	users    UserReader
	views    ViewDiscarder
}

func New(resolver *auth.Resolver, users UserReader, views ViewDiscarder) *Handler {
	return &Handler{resolver: resolver, users: users, views: views}
}

type signUpReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInReq struct {
	IDToken string `json:"id_token"`
}
