package api

import (
	"time"

	"github.com/arbetsytan/knox/internal/chread"
	"github.com/arbetsytan/knox/internal/knox"
	"github.com/arbetsytan/knox/internal/sanitize"
	"github.com/arbetsytan/knox/internal/store"
)

// --- Project CRUD ---

// CreateProjectReq is the JSON body for POST /v1/projects.
type CreateProjectReq struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// UpdateProjectReq is the JSON body for PATCH /v1/projects/{project_id}.
type UpdateProjectReq struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Classification *string `json:"classification,omitempty"`
}

// ProjectResp is the public view of a project.
type ProjectResp struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Classification string    `json:"classification"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func projectToResp(p *store.Project) ProjectResp {
	return ProjectResp{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Classification: p.Classification,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// --- Document ingest ---

// IngestReq is the JSON body for POST /v1/projects/{project_id}/documents.
// Multipart uploads use the "file" form field instead.
type IngestReq struct {
	Text string `json:"text"`
}

// FindingResp summarizes one finding without its value. The value hash
// lets operators correlate repeats across documents.
type FindingResp struct {
	Kind      string `json:"kind"`
	ValueHash string `json:"value_hash"`
}

// DocumentResp is the public view of a sanitized document. The raw
// text is gone by the time this type exists.
type DocumentResp struct {
	ID                int64                      `json:"id"`
	ProjectID         int64                      `json:"project_id"`
	ContentHash       string                     `json:"content_hash"`
	MaskedText        string                     `json:"masked_text"`
	SanitizeLevel     string                     `json:"sanitize_level"`
	GatePassed        bool                       `json:"gate_passed"`
	GateReasons       []string                   `json:"gate_reasons"`
	UsageRestrictions sanitize.UsageRestrictions `json:"usage_restrictions"`
	CreatedAt         time.Time                  `json:"created_at"`
}

// IngestResp extends the document view with the per-ingest findings
// summary, which is not persisted.
type IngestResp struct {
	Document DocumentResp  `json:"document"`
	Findings []FindingResp `json:"findings"`
}

func documentToResp(d *store.Document) DocumentResp {
	reasons := d.GateReasons
	if reasons == nil {
		reasons = []string{}
	}
	return DocumentResp{
		ID:                d.ID,
		ProjectID:         d.ProjectID,
		ContentHash:       d.ContentHash,
		MaskedText:        d.MaskedText,
		SanitizeLevel:     d.SanitizeLevel.String(),
		GatePassed:        d.GatePassed,
		GateReasons:       reasons,
		UsageRestrictions: d.UsageRestrictions,
		CreatedAt:         d.CreatedAt,
	}
}

// --- Report compilation ---

// CompileReq is the JSON body for POST /v1/knox/compile.
type CompileReq struct {
	ProjectID   int64   `json:"project_id"`
	Policy      string  `json:"policy"`
	TemplateID  string  `json:"template_id,omitempty"`
	DocumentIDs []int64 `json:"document_ids"`
}

// ReportResp is the public view of a compiled report.
type ReportResp struct {
	ID            string             `json:"id"`
	ProjectID     int64              `json:"project_id"`
	Fingerprint   string             `json:"fingerprint"`
	PolicyID      string             `json:"policy_id"`
	PolicyVersion string             `json:"policy_version"`
	TemplateID    string             `json:"template_id"`
	Content       knox.ReportContent `json:"content"`
	CreatedAt     time.Time          `json:"created_at"`
}

func reportToResp(r *knox.Report) ReportResp {
	return ReportResp{
		ID:            r.ID.String(),
		ProjectID:     r.ProjectID,
		Fingerprint:   r.Fingerprint,
		PolicyID:      r.PolicyID,
		PolicyVersion: r.PolicyVersion,
		TemplateID:    r.TemplateID,
		Content:       r.Content,
		CreatedAt:     r.CreatedAt,
	}
}

// RefusalResp is the 422 body when a gate refuses a compile. Stage and
// reason codes only; never text from the material or the output.
type RefusalResp struct {
	Refused bool     `json:"refused"`
	Stage   string   `json:"stage"`
	Reasons []string `json:"reasons"`
}

// --- Delete ---

// DeleteResp is the receipt for a completed project delete.
type DeleteResp struct {
	TargetID      int64     `json:"target_id"`
	FilesExpected int       `json:"files_expected"`
	FilesDeleted  int       `json:"files_deleted"`
	RowsDeleted   int64     `json:"rows_deleted"`
	OrphansFound  int       `json:"orphans_found"`
	CompletedAt   time.Time `json:"completed_at"`
}

// --- Service keys ---

// CreateKeyReq is the JSON body for POST /v1/service-keys.
type CreateKeyReq struct {
	Name string `json:"name"`
}

// CreateKeyResp includes the plaintext key (shown once).
type CreateKeyResp struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Audit events ---

// EventListResp is the paginated events response.
type EventListResp struct {
	Events   []chread.EventRow `json:"events"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
