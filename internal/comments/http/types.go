package http

import (
	"context"

	"github.com/ShipLog-Showcase/showcase-backend/internal/comments"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
)

type Store interface {
	comments.Gateway
	Get(ctx context.Context, id string) (domain.Comment, error)
}

type Handler struct {
	store  Store
	policy domain.DeletePolicy
}

func New(store Store, policy domain.DeletePolicy) *Handler {
	return &Handler{store: store, policy: policy}
}

type contentReq struct {
	Content string `json:"content"`
}
