package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group. guard runs in
// front of every mutating route (authentication, rate limiting).
func (h *Handler) Register(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	with := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guard...), hf)
	}

	rg.GET("", h.list)
	rg.POST("", with(h.create)...)
	rg.GET("/events", h.stream)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", with(h.update)...)
	rg.DELETE("/:id", with(h.delete)...)
	rg.POST("/:id/vote", with(h.toggleVote)...)
	rg.DELETE("/:id/vote", with(h.removeVote)...)
	rg.POST("/:id/thumbnail", with(h.uploadThumbnail)...)
}

// RegisterDashboard attaches the signed-in user's dashboard.
func (h *Handler) RegisterDashboard(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("/dashboard", append(append([]gin.HandlerFunc{}, guard...), h.dashboard)...)
}
