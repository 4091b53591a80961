package http

import (
	"github.com/gin-gonic/gin"

	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
)

// Register expects rg to run auth.Resolver.WithUser already.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/sign-up", h.SignUp)
	rg.POST("/sign-in", h.SignIn)
	rg.POST("/sign-out", auth.RequireUser(), h.SignOut)
	rg.GET("/me", auth.RequireUser(), h.Me)
}
