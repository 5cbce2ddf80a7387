package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/projects/domain"
	"github.com/p4solution/portfolio-backend/internal/projects/service"
)

// Service is the project use-case surface the handlers call.
type Service interface {
	List(ctx context.Context) ([]domain.Project, error)
	Get(ctx context.Context, id int64) (*domain.Project, error)
	Create(ctx context.Context, in service.CreateInput) (*domain.Project, error)
	Update(ctx context.Context, id int64, in service.UpdateInput) (*domain.Project, error)
	Delete(ctx context.Context, id int64) error
}

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc        Service
	log        *zap.Logger
	production bool
	maxBody    int64
}

type Options struct {
	Production bool
	// MaxBody caps the whole request body of a write, in bytes. Zero means no cap.
	MaxBody int64
}

func New(svc Service, log *zap.Logger, opt Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:        svc,
		log:        log.Named("projects.http"),
		production: opt.Production,
		maxBody:    opt.MaxBody,
	}
}
