package bootstrap

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/p4solution/portfolio-backend/internal/api/http"
	"github.com/p4solution/portfolio-backend/internal/api/http/middleware"
	"github.com/p4solution/portfolio-backend/internal/auth"
	authhttp "github.com/p4solution/portfolio-backend/internal/auth/http"
	authmw "github.com/p4solution/portfolio-backend/internal/auth/middleware"
	"github.com/p4solution/portfolio-backend/internal/auth/service"
	"github.com/p4solution/portfolio-backend/internal/contact"
	"github.com/p4solution/portfolio-backend/internal/db"
	projecthttp "github.com/p4solution/portfolio-backend/internal/projects/http"
	"github.com/p4solution/portfolio-backend/internal/storage/blob"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Environment string
	Log         *zap.Logger

	DB       db.Adapter
	Projects projecthttp.Service
	Tokens   *auth.Tokens
	Auth     *service.AuthService
	Mailer   contact.Sender
	MailTo   string
	Limiter  *middleware.RateLimiter

	// Local is set when uploads are kept on local disk and served by this process.
	Local   *blob.Local
	MaxBody int64
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	log := dep.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-Id")
	corsCfg.ExposeHeaders = []string{"X-Request-Id"}
	r.Use(cors.New(corsCfg))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Environment, dep.DB)
	healthHandler.RegisterRoutes(r)

	if dep.Local != nil {
		r.Static("/uploads", dep.Local.Root())
	}

	api := r.Group("/api")
	healthHandler.RegisterRoutes(api)
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": dep.ServiceName + " API is running"})
	})

	limit := func(c *gin.Context) { c.Next() }
	if dep.Limiter != nil {
		limit = dep.Limiter.Middleware()
	}
	requireAuth := authmw.JWTAuthMiddleware(dep.Tokens)

	authhttp.New(dep.Auth, log).Register(api.Group("/auth"), limit, requireAuth)

	projecthttp.New(dep.Projects, log, projecthttp.Options{
		Production: dep.Environment == "production",
		MaxBody:    dep.MaxBody,
	}).Register(api.Group("/projects"), requireAuth)

	contact.NewHandler(dep.Mailer, dep.MailTo, dep.ServiceName, log).Register(api.Group("/contact"), limit)

	return r
}
