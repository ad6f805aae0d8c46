package storage

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/privacy"
)

// captureWriter collects events synchronously for assertions.
type captureWriter struct {
	events []*AuditEvent
}

func (w *captureWriter) Write(event *AuditEvent) { w.events = append(w.events, event) }
func (w *captureWriter) Close()                  {}

func TestRecorder_Record_FillsIdentityAndTimestamp(t *testing.T) {
	cw := &captureWriter{}
	rec := NewRecorder(cw, privacy.NewGuard(privacy.ModeDevelopment, zap.NewNop()), zap.NewNop())

	err := rec.Record(context.Background(), &AuditEvent{
		EventType: EventDocumentIngested,
		ProjectID: 12,
	}, map[string]any{"sanitize_level": "strict", "finding_count": 3})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if len(cw.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cw.events))
	}
	e := cw.events[0]
	if e.EventID == "" {
		t.Error("expected generated event ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if e.Metadata["sanitize_level"] != "strict" {
		t.Errorf("expected metadata sanitize_level=strict, got %v", e.Metadata)
	}
	if e.Metadata["finding_count"] != "3" {
		t.Errorf("expected stringified finding_count, got %q", e.Metadata["finding_count"])
	}
}

func TestRecorder_Record_DevModeRejectsForbiddenKeys(t *testing.T) {
	cw := &captureWriter{}
	rec := NewRecorder(cw, privacy.NewGuard(privacy.ModeDevelopment, zap.NewNop()), zap.NewNop())

	err := rec.Record(context.Background(), &AuditEvent{EventType: EventDocumentIngested},
		map[string]any{"filename": "secret.pdf", "project_id": 1})
	if err == nil {
		t.Fatal("expected error for forbidden metadata key in development mode")
	}
	if len(cw.events) != 0 {
		t.Errorf("no event should be written after a failed assertion, got %d", len(cw.events))
	}
}

func TestRecorder_Record_ProdModeDropsForbiddenKeys(t *testing.T) {
	cw := &captureWriter{}
	rec := NewRecorder(cw, privacy.NewGuard(privacy.ModeProduction, zap.NewNop()), zap.NewNop())

	err := rec.Record(context.Background(), &AuditEvent{EventType: EventDocumentIngested},
		map[string]any{"filename": "secret.pdf", "project_id": 1})
	if err != nil {
		t.Fatalf("production mode should drop and proceed, got: %v", err)
	}

	if len(cw.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cw.events))
	}
	md := cw.events[0].Metadata
	if _, ok := md["filename"]; ok {
		t.Error("forbidden key filename survived into metadata")
	}
	if md["project_id"] != "1" {
		t.Errorf("expected project_id=1 in metadata, got %v", md)
	}
}

func TestRecorder_Emit_LiftsTargetID(t *testing.T) {
	cw := &captureWriter{}
	rec := NewRecorder(cw, privacy.NewGuard(privacy.ModeDevelopment, zap.NewNop()), zap.NewNop())

	err := rec.Emit(context.Background(), EventProjectDeleted, map[string]any{
		"target_id":     int64(9),
		"files_deleted": 4,
		"rows_deleted":  int64(12),
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	e := cw.events[0]
	if e.EventType != EventProjectDeleted {
		t.Errorf("expected event type %s, got %s", EventProjectDeleted, e.EventType)
	}
	if e.ProjectID != 9 {
		t.Errorf("expected project ID 9 lifted from target_id, got %d", e.ProjectID)
	}
	if e.Metadata["files_deleted"] != "4" {
		t.Errorf("expected files_deleted=4, got %v", e.Metadata)
	}
}
