package storage

import "time"

// EventWriter is the interface for writing audit events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *AuditEvent)
	Close()
}

// AuditEvent is one row of the audit trail. It carries identifiers,
// enum-like fields and counts only — document content, filenames and
// source identifiers never enter an event. Metadata is expected to have
// passed the privacy guard before it reaches a writer.
type AuditEvent struct {
	EventID       string
	EventType     string
	Timestamp     time.Time
	ProjectID     int64
	ActorKeyID    int64
	Actor         string
	SanitizeLevel string
	GateReasons   []string
	Metadata      map[string]string
	LatencyMs     float32
}

// Event types emitted across the pipeline.
const (
	EventDocumentIngested = "document_ingested"
	EventGateBlocked      = "gate_blocked"
	EventLevelEscalated   = "level_escalated"
	EventReportCompiled   = "report_compiled"
	EventReportRefused    = "report_refused"
	EventProjectDeleted   = "project_deleted"
)
