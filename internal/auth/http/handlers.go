package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/auth"
	"github.com/p4solution/portfolio-backend/internal/auth/service"
)

// Login exchanges the admin credentials for a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	session, err := h.authService.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrNotConfigured):
		h.log.Warn("login rejected",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	case err != nil:
		h.log.Error("login failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, loginResp{
		Success:   true,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      userResp{Username: session.Username, Role: session.Role},
	})
}

// Verify reports the identity behind a valid token.
func (h *Handler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user":  userResp{Username: auth.Username(c), Role: auth.Role(c)},
	})
}
