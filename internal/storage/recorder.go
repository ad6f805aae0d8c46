package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/privacy"
)

// Recorder is the single entry point for audit events. Every metadata
// map goes through the privacy guard before it reaches an EventWriter,
// so a handler cannot bypass the forbidden-key check by writing
// directly.
type Recorder struct {
	writer EventWriter
	guard  *privacy.Guard
	logger *zap.Logger
}

func NewRecorder(writer EventWriter, guard *privacy.Guard, logger *zap.Logger) *Recorder {
	return &Recorder{writer: writer, guard: guard, logger: logger}
}

// Record guards meta and queues the event. In development mode a
// forbidden metadata key aborts the write with an error; in production
// the key is dropped and the event is written without it.
func (r *Recorder) Record(ctx context.Context, event *AuditEvent, meta map[string]any) error {
	clean, err := r.guard.Apply(meta, event.EventType)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}

	event.Metadata = stringifyMeta(clean)
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.writer.Write(event)
	return nil
}

// Emit adapts Record to the single-map form used by the delete
// verifier. Well-known identifier keys are lifted into the typed event
// columns; everything else stays in metadata.
func (r *Recorder) Emit(ctx context.Context, eventType string, meta map[string]any) error {
	event := &AuditEvent{EventType: eventType}
	if id, ok := metaInt64(meta, "target_id"); ok {
		event.ProjectID = id
	}
	if id, ok := metaInt64(meta, "project_id"); ok {
		event.ProjectID = id
	}
	return r.Record(ctx, event, meta)
}

// Close flushes and closes the underlying writer.
func (r *Recorder) Close() {
	r.writer.Close()
}

func stringifyMeta(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func metaInt64(meta map[string]any, key string) (int64, bool) {
	switch v := meta[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
