package http

import (
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/auth/service"
)

type Handler struct {
	authService *service.AuthService
	log         *zap.Logger
}

func New(authService *service.AuthService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		authService: authService,
		log:         log.Named("auth"),
	}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResp struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResp struct {
	Success   bool     `json:"success"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expiresAt"`
	User      userResp `json:"user"`
}
