package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxUsername = "username"
	CtxRole     = "role"
)

// Username extracts the authenticated username from the Gin context.
// This is set by JWTAuthMiddleware.
func Username(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUsername))
}

func Role(c *gin.Context) string {
	return c.GetString(CtxRole)
}
