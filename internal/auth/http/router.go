package http

import "github.com/gin-gonic/gin"

// Register mounts /login behind limit and /verify behind requireAuth.
func (h *Handler) Register(rg *gin.RouterGroup, limit, requireAuth gin.HandlerFunc) {
	rg.POST("/login", limit, h.Login)
	rg.GET("/verify", requireAuth, h.Verify)
}
