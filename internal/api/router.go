package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/auth"
	"github.com/arbetsytan/knox/internal/chread"
	"github.com/arbetsytan/knox/internal/config"
	"github.com/arbetsytan/knox/internal/knox"
	"github.com/arbetsytan/knox/internal/metrics"
	"github.com/arbetsytan/knox/internal/sanitize"
	"github.com/arbetsytan/knox/internal/storage"
	"github.com/arbetsytan/knox/internal/store"
	"github.com/arbetsytan/knox/internal/wipe"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store    *store.Store
	Vault    *store.FileVault
	Pipeline *sanitize.Pipeline
	Compiler *knox.Compiler
	Config   *config.Store
	Auth     auth.Authenticator
	Recorder *storage.Recorder
	Reader   *chread.Reader // nil if ClickHouse unavailable
	Wiper    *wipe.Verifier
	Metrics  *metrics.Handler
	Logger   *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up. Every /v1
// route requires a Bearer wsk_ service key.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Project CRUD
	mux.HandleFunc("POST /v1/projects", deps.requireAuth(deps.handleCreateProject))
	mux.HandleFunc("GET /v1/projects", deps.requireAuth(deps.handleListProjects))
	mux.HandleFunc("GET /v1/projects/{project_id}", deps.requireAuth(deps.handleGetProject))
	mux.HandleFunc("PATCH /v1/projects/{project_id}", deps.requireAuth(deps.handleUpdateProject))
	mux.HandleFunc("DELETE /v1/projects/{project_id}", deps.requireAuth(deps.handleDeleteProject))

	// Document ingest + listing
	mux.HandleFunc("POST /v1/projects/{project_id}/documents", deps.requireAuth(deps.handleIngestDocument))
	mux.HandleFunc("GET /v1/projects/{project_id}/documents", deps.requireAuth(deps.handleListDocuments))
	mux.HandleFunc("GET /v1/projects/{project_id}/documents/{document_id}", deps.requireAuth(deps.handleGetDocument))

	// Report compilation + listing
	mux.HandleFunc("POST /v1/knox/compile", deps.requireAuth(deps.handleCompile))
	mux.HandleFunc("GET /v1/projects/{project_id}/reports", deps.requireAuth(deps.handleListReports))

	// Audit events
	mux.HandleFunc("GET /v1/projects/{project_id}/events", deps.requireAuth(deps.handleListEvents))
	mux.HandleFunc("GET /v1/projects/{project_id}/events/summary", deps.requireAuth(deps.handleEventsSummary))

	// Service key administration
	mux.HandleFunc("POST /v1/service-keys", deps.requireAuth(deps.handleCreateKey))
	mux.HandleFunc("POST /v1/service-keys/{key_id}/rotate", deps.requireAuth(deps.handleRotateKey))
	mux.HandleFunc("DELETE /v1/service-keys/{key_id}", deps.requireAuth(deps.handleDeleteKey))

	// Health check + metrics (unauthenticated)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
