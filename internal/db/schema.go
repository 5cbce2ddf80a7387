package db

import "strings"

// Columns of the projects table in their canonical (JSON) casing. The schema
// uses unquoted identifiers, which PostgreSQL folds to lower case.
var Columns = []string{
	"id",
	"title",
	"description",
	"category",
	"location",
	"completionDate",
	"clientName",
	"images",
	"createdAt",
	"updatedAt",
}

var canonicalColumns = func() map[string]string {
	m := make(map[string]string, len(Columns))
	for _, c := range Columns {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// CanonicalColumn maps a column name returned by any backend onto its
// canonical casing. Unknown columns are returned unchanged.
func CanonicalColumn(name string) string {
	if c, ok := canonicalColumns[strings.ToLower(name)]; ok {
		return c
	}
	return name
}

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	category TEXT,
	location TEXT,
	completionDate TEXT,
	clientName TEXT,
	images TEXT,
	createdAt DATETIME DEFAULT CURRENT_TIMESTAMP,
	updatedAt DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects (createdAt DESC)`,
}

var postgresSchema = []string{
	`
CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	category TEXT,
	location TEXT,
	completionDate TEXT,
	clientName TEXT,
	images TEXT,
	createdAt TIMESTAMPTZ NOT NULL DEFAULT now(),
	updatedAt TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects (createdAt DESC)`,
}
