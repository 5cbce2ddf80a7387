package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/p4solution/portfolio-backend/internal/db"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
)

// Drivers disagree on how timestamps come back: lib/pq and modernc (for
// DATETIME columns) yield time.Time, while rows written by CURRENT_TIMESTAMP
// or older tools may surface as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func fromRow(row db.Row) (*domain.Project, error) {
	id, err := toInt64(row["id"])
	if err != nil {
		return nil, fmt.Errorf("project id: %w", err)
	}

	images, err := decodeImages(toString(row["images"]))
	if err != nil {
		return nil, fmt.Errorf("project %d images: %w", id, err)
	}

	p := &domain.Project{
		ID:             id,
		Title:          toString(row["title"]),
		Description:    toString(row["description"]),
		Category:       toString(row["category"]),
		Location:       toString(row["location"]),
		CompletionDate: toString(row["completionDate"]),
		ClientName:     toString(row["clientName"]),
		Images:         images,
	}
	if p.CreatedAt, err = toTime(row["createdAt"]); err != nil {
		return nil, fmt.Errorf("project %d createdAt: %w", id, err)
	}
	if p.UpdatedAt, err = toTime(row["updatedAt"]); err != nil {
		return nil, fmt.Errorf("project %d updatedAt: %w", id, err)
	}
	return p, nil
}

func encodeImages(images []string) (string, error) {
	b, err := json.Marshal(nonNil(images))
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return string(b), nil
}

func decodeImages(s string) ([]string, error) {
	if s == "" || s == "null" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
