package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbetsytan/knox/internal/sanitize"
)

// Document represents a row in the documents table. Only the masked
// rendition and the sanitization outcome are persisted — no raw text,
// no filenames, no source identifiers of any kind. ContentHash is the
// SHA-256 of the masked text, used for report fingerprinting.
type Document struct {
	ID                int64
	ProjectID         int64
	ContentHash       string
	MaskedText        string
	SanitizeLevel     sanitize.Level
	GatePassed        bool
	GateReasons       []string
	UsageRestrictions sanitize.UsageRestrictions
	CreatedAt         time.Time
}

// InsertDocumentParams carries one sanitization result into storage.
type InsertDocumentParams struct {
	ProjectID         int64
	ContentHash       string
	MaskedText        string
	SanitizeLevel     sanitize.Level
	GatePassed        bool
	GateReasons       []string
	UsageRestrictions sanitize.UsageRestrictions
}

// InsertDocument persists a sanitized document.
func (s *Store) InsertDocument(ctx context.Context, params InsertDocumentParams) (*Document, error) {
	reasons, err := json.Marshal(params.GateReasons)
	if err != nil {
		return nil, fmt.Errorf("InsertDocument: %w", err)
	}
	restrictions, err := json.Marshal(params.UsageRestrictions)
	if err != nil {
		return nil, fmt.Errorf("InsertDocument: %w", err)
	}

	d := Document{
		ProjectID:         params.ProjectID,
		ContentHash:       params.ContentHash,
		MaskedText:        params.MaskedText,
		SanitizeLevel:     params.SanitizeLevel,
		GatePassed:        params.GatePassed,
		GateReasons:       params.GateReasons,
		UsageRestrictions: params.UsageRestrictions,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (project_id, content_hash, masked_text, sanitize_level,
		                       gate_passed, gate_reasons, usage_restrictions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		params.ProjectID, params.ContentHash, params.MaskedText, params.SanitizeLevel.String(),
		params.GatePassed, reasons, restrictions,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("InsertDocument: %w", err)
	}
	return &d, nil
}

// GetDocument returns a document by ID, or nil if not found.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, content_hash, masked_text, sanitize_level,
		       gate_passed, gate_reasons, usage_restrictions, created_at
		FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	return d, nil
}

// ListDocuments returns a project's documents, oldest first.
func (s *Store) ListDocuments(ctx context.Context, projectID int64) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, content_hash, masked_text, sanitize_level,
		       gate_passed, gate_reasons, usage_restrictions, created_at
		FROM documents WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var level string
	var reasons, restrictions []byte
	if err := row.Scan(&d.ID, &d.ProjectID, &d.ContentHash, &d.MaskedText, &level,
		&d.GatePassed, &reasons, &restrictions, &d.CreatedAt); err != nil {
		return nil, err
	}

	lvl, err := sanitize.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	d.SanitizeLevel = lvl
	if err := json.Unmarshal(reasons, &d.GateReasons); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(restrictions, &d.UsageRestrictions); err != nil {
		return nil, err
	}
	return &d, nil
}
