// Package wipe implements verified secure deletion of a project's
// stored artifacts. Deletion is fail-closed: if files remain reachable
// after the file pass, the database rows are left untouched and the
// operation reports a fatal inconsistency for an operator to resolve.
package wipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Provider enumerates and deletes the stored artifacts of one target.
// ListFiles returns opaque handles; the verifier only ever counts them
// and passes them back to DeleteFile, it never logs or persists them.
type Provider interface {
	ListFiles(ctx context.Context, targetID int64) ([]string, error)
	DeleteFile(ctx context.Context, targetID int64, handle string) error
	DeleteRows(ctx context.Context, targetID int64) (int64, error)
}

// Emitter records an audit event. Implementations route metadata
// through the privacy guard before persisting.
type Emitter interface {
	Emit(ctx context.Context, eventType string, meta map[string]any) error
}

// Receipt is the aggregate outcome of a completed delete. Counts only,
// never names.
type Receipt struct {
	TargetID      int64     `json:"target_id"`
	FilesExpected int       `json:"files_expected"`
	FilesDeleted  int       `json:"files_deleted"`
	RowsDeleted   int64     `json:"rows_deleted"`
	OrphansFound  int       `json:"orphans_found"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ErrDeleteInProgress is returned when a delete is requested for a
// target that is already being deleted, and to ingest holds attempted
// while a delete runs.
var ErrDeleteInProgress = errors.New("delete already in progress for this target")

// ErrIngestInProgress is returned when a delete is requested while an
// ingest still holds the target.
var ErrIngestInProgress = errors.New("ingestion in flight for this target")

// OrphanError reports files still reachable after the file deletion
// pass. It is a fatal inconsistency: row deletion has not happened and
// the operation must not be blindly retried.
type OrphanError struct {
	TargetID int64
	Orphans  int
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("delete verification failed for target %d: %d files still reachable", e.TargetID, e.Orphans)
}

// Verifier runs ordered, verified deletes with one exclusive slot per
// target. The slot also excludes writers: an ingest hold blocks a
// delete from starting, and a running delete blocks new ingest holds,
// so no file can land between the orphan scan and the row pass.
type Verifier struct {
	provider Provider
	emitter  Emitter
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[int64]*targetSlot
}

type targetSlot struct {
	deleting bool
	ingests  int
}

func NewVerifier(provider Provider, emitter Emitter, logger *zap.Logger) *Verifier {
	return &Verifier{
		provider: provider,
		emitter:  emitter,
		logger:   logger,
		slots:    make(map[int64]*targetSlot),
	}
}

// BeginIngest reserves targetID against a concurrent delete. The
// returned release must be called exactly once, after the ingest's last
// write has landed. Multiple ingests may hold the same target at once.
func (v *Verifier) BeginIngest(targetID int64) (release func(), err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.slots[targetID]
	if s == nil {
		s = &targetSlot{}
		v.slots[targetID] = s
	}
	if s.deleting {
		return nil, ErrDeleteInProgress
	}
	s.ingests++

	var once sync.Once
	return func() { once.Do(func() { v.endIngest(targetID) }) }, nil
}

func (v *Verifier) endIngest(targetID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s := v.slots[targetID]; s != nil {
		s.ingests--
		if s.ingests <= 0 && !s.deleting {
			delete(v.slots, targetID)
		}
	}
}

// Delete removes every file and row belonging to targetID, in that
// order, verifying zero remaining files in between. Deleting a target
// that holds nothing is a successful no-op with a zero receipt.
func (v *Verifier) Delete(ctx context.Context, targetID int64) (*Receipt, error) {
	if err := v.acquire(targetID); err != nil {
		return nil, err
	}
	defer v.release(targetID)

	log := v.logger.With(zap.Int64("target_id", targetID))

	files, err := v.provider.ListFiles(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}
	log.Info("delete started", zap.Int("file_count", len(files)))

	for _, h := range files {
		if err := v.provider.DeleteFile(ctx, targetID, h); err != nil {
			return nil, fmt.Errorf("delete file: %w", err)
		}
	}

	// Orphan scan: re-enumerate and demand zero. Anything left means
	// partial deletion; rows stay so the inconsistency remains visible.
	remaining, err := v.provider.ListFiles(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("verify deletion: %w", err)
	}
	if len(remaining) > 0 {
		log.Error("orphaned files after delete pass", zap.Int("orphans", len(remaining)))
		return nil, &OrphanError{TargetID: targetID, Orphans: len(remaining)}
	}

	rows, err := v.provider.DeleteRows(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("delete rows: %w", err)
	}

	receipt := &Receipt{
		TargetID:      targetID,
		FilesExpected: len(files),
		FilesDeleted:  len(files),
		RowsDeleted:   rows,
		OrphansFound:  0,
		CompletedAt:   time.Now().UTC(),
	}

	if v.emitter != nil {
		meta := map[string]any{
			"target_id":      targetID,
			"files_expected": receipt.FilesExpected,
			"files_deleted":  receipt.FilesDeleted,
			"rows_deleted":   receipt.RowsDeleted,
			"orphans_found":  receipt.OrphansFound,
		}
		if err := v.emitter.Emit(ctx, "project_deleted", meta); err != nil {
			return nil, fmt.Errorf("emit delete event: %w", err)
		}
	}

	log.Info("delete completed",
		zap.Int("files_deleted", receipt.FilesDeleted),
		zap.Int64("rows_deleted", receipt.RowsDeleted))
	return receipt, nil
}

func (v *Verifier) acquire(targetID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.slots[targetID]
	if s == nil {
		v.slots[targetID] = &targetSlot{deleting: true}
		return nil
	}
	if s.deleting {
		return ErrDeleteInProgress
	}
	if s.ingests > 0 {
		return ErrIngestInProgress
	}
	s.deleting = true
	return nil
}

func (v *Verifier) release(targetID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s := v.slots[targetID]; s != nil {
		s.deleting = false
		if s.ingests <= 0 {
			delete(v.slots, targetID)
		}
	}
}
