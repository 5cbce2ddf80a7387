package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/p4solution/portfolio-backend/internal/db"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
)

// ProjectRepository persists projects through whichever adapter was opened at
// startup. Queries use "?" placeholders only.
type ProjectRepository struct {
	db db.Adapter
}

func NewProjectRepository(a db.Adapter) *ProjectRepository {
	return &ProjectRepository{db: a}
}

// List returns all projects, newest first.
func (r *ProjectRepository) List(ctx context.Context) ([]domain.Project, error) {
	const q = `
SELECT id, title, description, category, location, completionDate, clientName, images, createdAt, updatedAt
FROM projects
ORDER BY createdAt DESC, id DESC`

	rows, err := r.db.FetchMany(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	out := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int64) (*domain.Project, error) {
	const q = `
SELECT id, title, description, category, location, completionDate, clientName, images, createdAt, updatedAt
FROM projects
WHERE id = ?`

	row, err := r.db.FetchOne(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return fromRow(row)
}

func (r *ProjectRepository) Create(ctx context.Context, f domain.Fields, images []string) (*domain.Project, error) {
	const q = `
INSERT INTO projects (title, description, category, location, completionDate, clientName, images, createdAt, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	encoded, err := encodeImages(images)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	res, err := r.db.Execute(ctx, q,
		f.Title, nullable(f.Description), nullable(f.Category), nullable(f.Location),
		nullable(f.CompletionDate), nullable(f.ClientName), encoded, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	if !res.HasInsertedID {
		return nil, fmt.Errorf("insert project: no id returned")
	}

	return &domain.Project{
		ID:             res.InsertedID,
		Title:          f.Title,
		Description:    f.Description,
		Category:       f.Category,
		Location:       f.Location,
		CompletionDate: f.CompletionDate,
		ClientName:     f.ClientName,
		Images:         nonNil(images),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Update replaces every editable column and the image list, and refreshes
// updatedAt. It returns domain.ErrNotFound when no row matched.
func (r *ProjectRepository) Update(ctx context.Context, id int64, f domain.Fields, images []string) (*domain.Project, error) {
	const q = `
UPDATE projects
SET title = ?, description = ?, category = ?, location = ?, completionDate = ?, clientName = ?, images = ?, updatedAt = ?
WHERE id = ?`

	encoded, err := encodeImages(images)
	if err != nil {
		return nil, err
	}

	res, err := r.db.Execute(ctx, q,
		f.Title, nullable(f.Description), nullable(f.Category), nullable(f.Location),
		nullable(f.CompletionDate), nullable(f.ClientName), encoded, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}
	if res.AffectedRows == 0 {
		return nil, domain.ErrNotFound
	}

	return r.Get(ctx, id)
}

// Delete removes the row. It returns domain.ErrNotFound when no row matched.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Execute(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if res.AffectedRows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
