package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handler holds the service's Prometheus instruments. Labels carry
// enum values only (levels, stages, reasons, outcomes) so the metrics
// surface can never leak document content.
type Handler struct {
	DocumentsSanitized *prometheus.CounterVec
	GateBlockedTotal   *prometheus.CounterVec
	LevelEscalations   *prometheus.CounterVec
	CompileTotal       *prometheus.CounterVec
	CompileRefusals    *prometheus.CounterVec
	CompileLatency     *prometheus.HistogramVec
	DeleteTotal        *prometheus.CounterVec
	AuthFailures       *prometheus.CounterVec
}

func New() *Handler {
	return &Handler{
		DocumentsSanitized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_documents_sanitized_total",
			Help: "The total number of documents run through the sanitize pipeline",
		}, []string{"level", "gate_passed"}),
		GateBlockedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_gate_blocked_total",
			Help: "The total number of admission gate refusals by reason",
		}, []string{"reason"}),
		LevelEscalations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_level_escalations_total",
			Help: "The total number of sanitize level escalations",
		}, []string{"from", "to"}),
		CompileTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_compile_total",
			Help: "The total number of report compilations by outcome",
		}, []string{"outcome"}),
		CompileRefusals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_compile_refusals_total",
			Help: "The total number of compile refusals by stage",
		}, []string{"stage"}),
		CompileLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "knox_compile_latency_seconds",
			Help:    "The end-to-end latency of report compilation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		DeleteTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_project_deletes_total",
			Help: "The total number of project delete operations by outcome",
		}, []string{"outcome"}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "knox_auth_failures_total",
			Help: "The total number of rejected API requests by reason",
		}, []string{"reason"}),
	}
}

// ObserveSanitize records one pipeline run.
func (h *Handler) ObserveSanitize(level string, gatePassed bool, reasons []string) {
	passed := "true"
	if !gatePassed {
		passed = "false"
	}
	h.DocumentsSanitized.WithLabelValues(level, passed).Inc()
	for _, r := range reasons {
		h.GateBlockedTotal.WithLabelValues(r).Inc()
	}
}

// ObserveEscalation records a sanitize level transition.
func (h *Handler) ObserveEscalation(from, to string) {
	h.LevelEscalations.WithLabelValues(from, to).Inc()
}

// ObserveCompile records a compile outcome ("success", "refused",
// "shared", "error") and its latency.
func (h *Handler) ObserveCompile(outcome string, duration time.Duration) {
	h.CompileTotal.WithLabelValues(outcome).Inc()
	h.CompileLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRefusal records which gate refused a compile.
func (h *Handler) ObserveRefusal(stage string) {
	h.CompileRefusals.WithLabelValues(stage).Inc()
}

// ObserveDelete records a delete outcome ("completed", "noop",
// "orphans", "busy", "error").
func (h *Handler) ObserveDelete(outcome string) {
	h.DeleteTotal.WithLabelValues(outcome).Inc()
}

// ObserveAuthFailure records a rejected request ("missing_key",
// "invalid_key", "unavailable").
func (h *Handler) ObserveAuthFailure(reason string) {
	h.AuthFailures.WithLabelValues(reason).Inc()
}
