package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arbetsytan/knox/internal/knox"
)

// GetReportByFingerprint returns the cached report for a fingerprint,
// or nil if none has been compiled. Satisfies knox.ReportStore.
func (s *Store) GetReportByFingerprint(ctx context.Context, fingerprint string) (*knox.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, fingerprint, policy_id, policy_version, template_id,
		       content, created_at
		FROM knox_reports WHERE fingerprint = $1`, fingerprint)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetReportByFingerprint: %w", err)
	}
	return r, nil
}

// InsertReport persists a compiled report. The fingerprint is unique:
// a concurrent insert of the same fingerprint is not an error, first
// writer wins and later readers see that row.
func (s *Store) InsertReport(ctx context.Context, r *knox.Report) error {
	content, err := json.Marshal(r.Content)
	if err != nil {
		return fmt.Errorf("InsertReport: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knox_reports (id, project_id, fingerprint, policy_id, policy_version,
		                          template_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fingerprint) DO NOTHING`,
		r.ID, r.ProjectID, r.Fingerprint, r.PolicyID, r.PolicyVersion,
		r.TemplateID, content, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertReport: %w", err)
	}
	return nil
}

// ListReports returns a project's reports, newest first.
func (s *Store) ListReports(ctx context.Context, projectID int64) ([]*knox.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, fingerprint, policy_id, policy_version, template_id,
		       content, created_at
		FROM knox_reports WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListReports: %w", err)
	}
	defer rows.Close()

	var reports []*knox.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ListReports: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanReport(row rowScanner) (*knox.Report, error) {
	var r knox.Report
	var content []byte
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Fingerprint, &r.PolicyID, &r.PolicyVersion,
		&r.TemplateID, &content, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &r.Content); err != nil {
		return nil, err
	}
	return &r, nil
}
