package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group. Writes go
// through requireAuth.
func (h *Handler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("", requireAuth, h.create)
	rg.PUT("/:id", requireAuth, h.update)
	rg.DELETE("/:id", requireAuth, h.delete)
}
