package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/store"
	"github.com/arbetsytan/knox/internal/wipe"
)

func (d *Dependencies) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}
	if req.Classification != "" && !store.ValidClassification(req.Classification) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "classification must be normal, sensitive or source-sensitive"})
		return
	}

	project, err := d.Store.CreateProject(r.Context(), req.Name, req.Description, req.Classification)
	if err != nil {
		d.Logger.Error("failed to create project", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create project"})
		return
	}

	writeJSON(w, http.StatusCreated, projectToResp(project))
}

func (d *Dependencies) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := d.Store.ListProjects(r.Context())
	if err != nil {
		d.Logger.Error("failed to list projects", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list projects"})
		return
	}

	resp := make([]ProjectResp, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectToResp(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	project, err := d.Store.GetProject(r.Context(), id)
	if err != nil {
		d.Logger.Error("failed to get project", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get project"})
		return
	}
	if project == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Project not found."})
		return
	}
	writeJSON(w, http.StatusOK, projectToResp(project))
}

func (d *Dependencies) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}

	var req UpdateProjectReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	if req.Name != nil && (len(*req.Name) == 0 || len(*req.Name) > 255) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}
	if req.Classification != nil && !store.ValidClassification(*req.Classification) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "classification must be normal, sensitive or source-sensitive"})
		return
	}

	project, err := d.Store.UpdateProject(r.Context(), id, store.UpdateProjectParams{
		Name:           req.Name,
		Description:    req.Description,
		Classification: req.Classification,
	})
	if err != nil {
		d.Logger.Error("failed to update project", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update project"})
		return
	}
	if project == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Project not found."})
		return
	}
	writeJSON(w, http.StatusOK, projectToResp(project))
}

// handleDeleteProject runs the verified wipe: files first, orphan
// check, rows last, then the aggregate audit event. Fail-closed — an
// orphaned file aborts before any row is touched.
func (d *Dependencies) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}

	receipt, err := d.Wiper.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, wipe.ErrDeleteInProgress) {
			d.Metrics.ObserveDelete("busy")
			writeJSON(w, http.StatusConflict, ErrorResp{Detail: "Delete already in progress for this project"})
			return
		}
		if errors.Is(err, wipe.ErrIngestInProgress) {
			d.Metrics.ObserveDelete("busy")
			writeJSON(w, http.StatusConflict, ErrorResp{Detail: "Ingestion in flight for this project"})
			return
		}
		var orphanErr *wipe.OrphanError
		if errors.As(err, &orphanErr) {
			d.Metrics.ObserveDelete("orphans")
			d.Logger.Error("delete verification failed",
				zap.Int64("project_id", id),
				zap.Int("orphans", orphanErr.Orphans))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Delete verification failed: files remain, no rows were removed"})
			return
		}
		d.Metrics.ObserveDelete("error")
		d.Logger.Error("failed to delete project", zap.Int64("project_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete project"})
		return
	}

	outcome := "completed"
	if receipt.FilesDeleted == 0 && receipt.RowsDeleted == 0 {
		outcome = "noop"
	}
	d.Metrics.ObserveDelete(outcome)

	writeJSON(w, http.StatusOK, DeleteResp{
		TargetID:      receipt.TargetID,
		FilesExpected: receipt.FilesExpected,
		FilesDeleted:  receipt.FilesDeleted,
		RowsDeleted:   receipt.RowsDeleted,
		OrphansFound:  receipt.OrphansFound,
		CompletedAt:   receipt.CompletedAt,
	})
}

// pathID parses a numeric path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid " + name})
		return 0, false
	}
	return id, true
}
