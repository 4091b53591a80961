package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
	"github.com/ShipLog-Showcase/showcase-backend/internal/users"
)

type UserStore interface {
	EnsureUser(ctx context.Context, u users.UpsertUser) (string, error)
}

// Resolver turns request credentials into an Identity with a users row.
// With devHeaders on, X-User-Id / X-User-Email / X-User-Name are trusted
// when no bearer token is sent.
type Resolver struct {
	provider   session.Provider
	users      UserStore
	devHeaders bool
}

func NewResolver(provider session.Provider, users UserStore, devHeaders bool) *Resolver {
	return &Resolver{provider: provider, users: users, devHeaders: devHeaders}
}

func (r *Resolver) Provider() session.Provider { return r.provider }

// Ensure fills in id.UserID from the users table.
func (r *Resolver) Ensure(ctx context.Context, id *session.Identity) error {
	uid, err := r.users.EnsureUser(ctx, users.UpsertUser{
		FirebaseUID: id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		return err
	}
	id.UserID = uid
	return nil
}

// WithUser resolves the caller when credentials are present and leaves the
// request anonymous otherwise. A bad token is rejected outright.
func (r *Resolver) WithUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := r.identify(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			c.Abort()
			return
		}
		if id == nil {
			c.Next()
			return
		}

		if err := r.Ensure(c.Request.Context(), id); err != nil {
			log.Error().Err(err).Str("uid", id.UID).Msg("ensure user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user failed"})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, id.UID)
		c.Set(CtxUserDBID, id.UserID)
		c.Set(CtxIdentity, id)
		c.Next()
	}
}

// RequireUser aborts anonymous requests. It must run after WithUser.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserDBID(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": apperr.Message(apperr.ErrRequiresAuthentication)})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *Resolver) identify(c *gin.Context) (*session.Identity, error) {
	if token := extractToken(c); token != "" {
		if r.provider == nil {
			return nil, errors.New("no identity provider configured")
		}
		return r.provider.VerifyToken(c.Request.Context(), token)
	}

	if !r.devHeaders {
		return nil, nil
	}
	fuid := strings.TrimSpace(c.GetHeader("X-User-Id"))
	if fuid == "" {
		return nil, nil
	}
	return &session.Identity{
		UID:         fuid,
		Email:       strings.TrimSpace(c.GetHeader("X-User-Email")),
		DisplayName: strings.TrimSpace(c.GetHeader("X-User-Name")),
	}, nil
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimSpace(bearerToken[7:])
	}
	return ""
}
