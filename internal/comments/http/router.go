package http

import "github.com/gin-gonic/gin"

// RegisterProjectRoutes attaches thread routes under /projects.
func (h *Handler) RegisterProjectRoutes(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("/:id/comments", h.list)
	rg.POST("/:id/comments", append(append([]gin.HandlerFunc{}, guard...), h.add)...)
}

// Register attaches single-comment routes under /comments.
func (h *Handler) Register(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.Use(guard...)
	rg.POST("/:id/replies", h.reply)
	rg.PATCH("/:id", h.edit)
	rg.DELETE("/:id", h.delete)
}
