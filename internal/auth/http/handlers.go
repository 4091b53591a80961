package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
)

func respondErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"ok": false, "error": apperr.Message(err)})
}

// SignUp creates the account with the identity provider and its users row.
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	sess := session.New(h.resolver.Provider())
	id, err := sess.SignUp(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := h.resolver.Ensure(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Str("uid", id.UID).Msg("sign-up: ensure user")
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "user": id})
}

// SignIn verifies an ID token issued by the provider and returns the
// resolved identity.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	sess := session.New(h.resolver.Provider())
	id, err := sess.SignIn(c.Request.Context(), strings.TrimSpace(req.IDToken))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
		return
	}
	if err := h.resolver.Ensure(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Str("uid", id.UID).Msg("sign-in: ensure user")
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": id})
}

func (h *Handler) SignOut(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	sess := session.New(h.resolver.Provider())
	sess.Assume(id)
	if err := sess.SignOut(c.Request.Context()); err != nil {
		log.Warn().Err(err).Str("uid", id.UID).Msg("sign-out failed")
		respondErr(c, err)
		return
	}
	if h.views != nil {
		h.views.Discard(id.UserID)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
}
