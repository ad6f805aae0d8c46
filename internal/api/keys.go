package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// handleCreateKey implements POST /v1/service-keys. The plaintext key
// appears in this response and nowhere else — only the bcrypt hash is
// stored.
func (d *Dependencies) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}

	key, plaintext, err := d.Store.CreateServiceKey(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("failed to create service key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create service key"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateKeyResp{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	})
}

// handleRotateKey implements POST /v1/service-keys/{key_id}/rotate.
// The old plaintext stops working as soon as this returns.
func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "key_id")
	if !ok {
		return
	}

	key, plaintext, err := d.Store.RotateServiceKey(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Service key not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to rotate service key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate service key"})
		return
	}

	writeJSON(w, http.StatusOK, CreateKeyResp{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	})
}

// handleDeleteKey implements DELETE /v1/service-keys/{key_id}.
func (d *Dependencies) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "key_id")
	if !ok {
		return
	}

	err := d.Store.DeleteServiceKey(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Service key not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete service key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete service key"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
