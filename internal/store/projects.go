package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Classification grades how sensitive a project's material is.
const (
	ClassificationNormal          = "normal"
	ClassificationSensitive       = "sensitive"
	ClassificationSourceSensitive = "source-sensitive"
)

// ValidClassification reports whether s is a known classification.
func ValidClassification(s string) bool {
	switch s {
	case ClassificationNormal, ClassificationSensitive, ClassificationSourceSensitive:
		return true
	}
	return false
}

// Project represents a row in the projects table.
type Project struct {
	ID             int64
	Name           string
	Description    string
	Classification string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpdateProjectParams holds optional fields for partial project updates.
type UpdateProjectParams struct {
	Name           *string
	Description    *string
	Classification *string
}

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, name, description, classification string) (*Project, error) {
	if classification == "" {
		classification = ClassificationNormal
	}
	var p Project
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, classification)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, classification, created_at, updated_at`,
		name, description, classification,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Classification, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateProject: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, classification, created_at, updated_at
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListProjects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Classification,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListProjects: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// GetProject returns a project by ID, or nil if not found.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, classification, created_at, updated_at
		FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Classification, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetProject: %w", err)
	}
	return &p, nil
}

// UpdateProject applies a partial update to a project. Only non-nil fields are changed.
func (s *Store) UpdateProject(ctx context.Context, id int64, params UpdateProjectParams) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects SET
			name           = COALESCE($2, name),
			description    = COALESCE($3, description),
			classification = COALESCE($4, classification),
			updated_at     = now()
		WHERE id = $1
		RETURNING id, name, description, classification, created_at, updated_at`,
		id, params.Name, params.Description, params.Classification,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Classification, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateProject: %w", err)
	}
	return &p, nil
}

// DeleteProjectData removes every row belonging to a project in one
// transaction: documents and reports first, then the project itself.
// Returns the total row count removed; zero when the project is already
// gone.
func (s *Store) DeleteProjectData(ctx context.Context, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("DeleteProjectData: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, q := range []string{
		`DELETE FROM documents WHERE project_id = $1`,
		`DELETE FROM knox_reports WHERE project_id = $1`,
		`DELETE FROM projects WHERE id = $1`,
	} {
		res, err := tx.ExecContext(ctx, q, id)
		if err != nil {
			return 0, fmt.Errorf("DeleteProjectData: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("DeleteProjectData: %w", err)
	}
	return total, nil
}
