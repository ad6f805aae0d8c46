package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/sanitize"
	"github.com/arbetsytan/knox/internal/storage"
	"github.com/arbetsytan/knox/internal/store"
)

// maxIngestBytes bounds one upload. Interview transcripts and source
// documents are text; anything past this is a mistake, not material.
const maxIngestBytes = 10 << 20

// handleIngestDocument implements POST /v1/projects/{project_id}/documents.
// Accepts either a JSON body {"text": ...} or a multipart upload with a
// "file" field. The raw bytes go to the vault under an opaque handle;
// only the sanitized rendition is persisted to the database.
func (d *Dependencies) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}

	project, err := d.Store.GetProject(r.Context(), projectID)
	if err != nil {
		d.Logger.Error("failed to get project", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get project"})
		return
	}
	if project == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Project not found."})
		return
	}

	raw, ok := d.readIngestBody(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(raw) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Document text is empty"})
		return
	}

	// Hold the project against a verified delete until every write has
	// landed; a vault file saved mid-delete would outlive the project.
	release, err := d.Wiper.BeginIngest(projectID)
	if err != nil {
		writeJSON(w, http.StatusConflict, ErrorResp{Detail: "Delete in progress for this project"})
		return
	}
	defer release()

	// Vault first: the original bytes live only on disk, named by an
	// opaque handle. The client-supplied filename is dropped here.
	if _, err := d.Vault.Save(projectID, strings.NewReader(raw)); err != nil {
		d.Logger.Error("failed to store original", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to store document"})
		return
	}

	result := d.Pipeline.Sanitize(raw)
	restrictions := sanitize.DeriveRestrictions(result.Level)

	hash := sha256.Sum256([]byte(result.MaskedText))
	doc, err := d.Store.InsertDocument(r.Context(), store.InsertDocumentParams{
		ProjectID:         projectID,
		ContentHash:       hex.EncodeToString(hash[:]),
		MaskedText:        result.MaskedText,
		SanitizeLevel:     result.Level,
		GatePassed:        result.GatePassed,
		GateReasons:       result.GateReasons,
		UsageRestrictions: restrictions,
	})
	if err != nil {
		d.Logger.Error("failed to insert document", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to persist document"})
		return
	}

	d.Metrics.ObserveSanitize(result.Level.String(), result.GatePassed, result.GateReasons)
	if result.Level != sanitize.LevelNormal {
		d.Metrics.ObserveEscalation(sanitize.LevelNormal.String(), result.Level.String())
	}

	key := keyFromContext(r.Context())
	recordIngestEvent := func(eventType string, meta map[string]any) error {
		return d.Recorder.Record(r.Context(), &storage.AuditEvent{
			EventType:     eventType,
			ProjectID:     projectID,
			ActorKeyID:    key.KeyID,
			Actor:         key.Name,
			SanitizeLevel: result.Level.String(),
			GateReasons:   result.GateReasons,
		}, meta)
	}

	if err := recordIngestEvent(storage.EventDocumentIngested, map[string]any{
		"document_id":   doc.ID,
		"finding_count": len(result.Findings),
		"ai_allowed":    restrictions.AIAllowed,
	}); err != nil {
		// Development mode only: an event with forbidden metadata is a
		// defect and must surface, not be papered over.
		d.Logger.Error("audit event rejected", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Audit event rejected"})
		return
	}
	if result.Level != sanitize.LevelNormal {
		if err := recordIngestEvent(storage.EventLevelEscalated, map[string]any{
			"document_id": doc.ID,
			"from":        sanitize.LevelNormal.String(),
			"to":          result.Level.String(),
		}); err != nil {
			d.Logger.Error("audit event rejected", zap.Error(err))
		}
	}
	if !result.GatePassed {
		if err := recordIngestEvent(storage.EventGateBlocked, map[string]any{
			"document_id":  doc.ID,
			"reason_count": len(result.GateReasons),
		}); err != nil {
			d.Logger.Error("audit event rejected", zap.Error(err))
		}
	}

	findings := make([]FindingResp, 0, len(result.Findings))
	for _, f := range result.Findings {
		findings = append(findings, FindingResp{Kind: f.Kind.String(), ValueHash: f.ValueHash})
	}

	writeJSON(w, http.StatusCreated, IngestResp{
		Document: documentToResp(doc),
		Findings: findings,
	})
}

// readIngestBody extracts the raw text from either body form. Writes
// the error response itself when the body is unusable.
func (d *Dependencies) readIngestBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Missing file field"})
			return "", false
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Failed to read upload"})
			return "", false
		}
		return string(data), true
	}

	var req IngestReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return "", false
	}
	return req.Text, true
}

func (d *Dependencies) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}

	docs, err := d.Store.ListDocuments(r.Context(), projectID)
	if err != nil {
		d.Logger.Error("failed to list documents", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list documents"})
		return
	}

	resp := make([]DocumentResp, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, documentToResp(doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "document_id")
	if !ok {
		return
	}

	doc, err := d.Store.GetDocument(r.Context(), docID)
	if err != nil {
		d.Logger.Error("failed to get document", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get document"})
		return
	}
	if doc == nil || doc.ProjectID != projectID {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Document not found."})
		return
	}
	writeJSON(w, http.StatusOK, documentToResp(doc))
}
