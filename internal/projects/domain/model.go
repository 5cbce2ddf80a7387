package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("project not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries a message that is safe to show to clients.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Project is a single portfolio entry. Images holds media references in
// display order; the first one is the cover.
type Project struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Location       string    `json:"location"`
	CompletionDate string    `json:"completionDate"`
	ClientName     string    `json:"clientName"`
	Images         []string  `json:"images"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Fields are the client-editable text columns.
type Fields struct {
	Title          string
	Description    string
	Category       string
	Location       string
	CompletionDate string
	ClientName     string
}

// Normalize trims surrounding whitespace and requires a title.
func (f Fields) Normalize() (Fields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	f.CompletionDate = strings.TrimSpace(f.CompletionDate)
	f.ClientName = strings.TrimSpace(f.ClientName)

	if f.Title == "" {
		return f, Invalid("Title is required")
	}
	return f, nil
}
