package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/knox"
	"github.com/arbetsytan/knox/internal/storage"
)

// defaultTemplateID is used when a compile request names no template.
const defaultTemplateID = "standard"

// handleCompile implements POST /v1/knox/compile. The compiler only
// ever sees already-masked document text; refusals come back as 422
// with stage and reason codes, nothing else.
func (d *Dependencies) handleCompile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CompileReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.ProjectID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id is required"})
		return
	}
	if req.Policy == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "policy is required"})
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "document_ids is required"})
		return
	}
	if req.TemplateID == "" {
		req.TemplateID = defaultTemplateID
	}

	policy, err := knox.ResolvePolicy(req.Policy, d.Config.Current())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Unknown policy"})
		return
	}

	docs := make([]knox.InputDoc, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		doc, err := d.Store.GetDocument(r.Context(), id)
		if err != nil {
			d.Logger.Error("failed to load document", zap.Int64("document_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to load documents"})
			return
		}
		if doc == nil || doc.ProjectID != req.ProjectID {
			writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Document not found."})
			return
		}
		if !doc.UsageRestrictions.AIAllowed {
			// Paranoid-floor documents are excluded from AI use at the
			// door, before the compiler's own input gate runs.
			d.Metrics.ObserveRefusal(knox.StageInputGate)
			writeJSON(w, http.StatusUnprocessableEntity, RefusalResp{
				Refused: true,
				Stage:   knox.StageInputGate,
				Reasons: []string{"ai_use_restricted"},
			})
			return
		}
		docs = append(docs, knox.InputDoc{
			ID:         doc.ID,
			MaskedText: doc.MaskedText,
			Level:      doc.SanitizeLevel,
		})
	}

	report, err := d.Compiler.Compile(r.Context(), knox.CompileRequest{
		ProjectID:  req.ProjectID,
		Policy:     policy,
		TemplateID: req.TemplateID,
		Documents:  docs,
	})
	if err != nil {
		d.writeCompileFailure(w, r, req, err, time.Since(start))
		return
	}

	d.Metrics.ObserveCompile("success", time.Since(start))
	d.recordCompileEvent(r, storage.EventReportCompiled, req, policy, nil, time.Since(start))

	writeJSON(w, http.StatusOK, reportToResp(report))
}

func (d *Dependencies) writeCompileFailure(w http.ResponseWriter, r *http.Request, req CompileReq, err error, elapsed time.Duration) {
	var refusal *knox.Refusal
	if errors.As(err, &refusal) {
		d.Metrics.ObserveCompile("refused", elapsed)
		d.Metrics.ObserveRefusal(refusal.Stage)
		d.recordCompileEvent(r, storage.EventReportRefused, req, knox.Policy{ID: req.Policy}, refusal, elapsed)
		writeJSON(w, http.StatusUnprocessableEntity, RefusalResp{
			Refused: true,
			Stage:   refusal.Stage,
			Reasons: refusal.Reasons,
		})
		return
	}

	d.Metrics.ObserveCompile("error", elapsed)
	d.Logger.Error("compile failed", zap.Int64("project_id", req.ProjectID), zap.Error(err))
	writeJSON(w, http.StatusBadGateway, ErrorResp{Detail: "Report generation failed"})
}

func (d *Dependencies) recordCompileEvent(r *http.Request, eventType string, req CompileReq, policy knox.Policy, refusal *knox.Refusal, elapsed time.Duration) {
	key := keyFromContext(r.Context())
	event := &storage.AuditEvent{
		EventType:  eventType,
		ProjectID:  req.ProjectID,
		ActorKeyID: key.KeyID,
		Actor:      key.Name,
		LatencyMs:  float32(elapsed) / float32(time.Millisecond),
	}
	meta := map[string]any{
		"policy_id":      policy.ID,
		"template_id":    req.TemplateID,
		"document_count": len(req.DocumentIDs),
	}
	if refusal != nil {
		event.GateReasons = refusal.Reasons
		meta["stage"] = refusal.Stage
	}
	if err := d.Recorder.Record(r.Context(), event, meta); err != nil {
		d.Logger.Error("audit event rejected", zap.Error(err))
	}
}

func (d *Dependencies) handleListReports(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}

	reports, err := d.Store.ListReports(r.Context(), projectID)
	if err != nil {
		d.Logger.Error("failed to list reports", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list reports"})
		return
	}

	resp := make([]ReportResp, 0, len(reports))
	for _, rep := range reports {
		resp = append(resp, reportToResp(rep))
	}
	writeJSON(w, http.StatusOK, resp)
}
