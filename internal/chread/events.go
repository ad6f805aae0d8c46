// Package chread provides read access to the ClickHouse audit trail.
// Writes go through internal/storage; this side serves the list and
// summary endpoints.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse audit_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the audit_events table.
type EventRow struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Timestamp     time.Time         `json:"timestamp"`
	ProjectID     int64             `json:"project_id"`
	ActorKeyID    int64             `json:"actor_key_id"`
	Actor         string            `json:"actor"`
	SanitizeLevel string            `json:"sanitize_level"`
	GateReasons   []string          `json:"gate_reasons"`
	Metadata      map[string]string `json:"metadata"`
	LatencyMs     float32           `json:"latency_ms"`
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	ProjectID  int64
	EventType  *string
	Level      *string
	GateReason *string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
}

// ListEvents returns paginated, filtered audit events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	conditions := []string{"project_id = @project_id"}
	args := []any{
		clickhouse.Named("project_id", params.ProjectID),
	}

	if params.EventType != nil {
		conditions = append(conditions, "event_type = @event_type")
		args = append(args, clickhouse.Named("event_type", *params.EventType))
	}
	if params.Level != nil {
		conditions = append(conditions, "sanitize_level = @sanitize_level")
		args = append(args, clickhouse.Named("sanitize_level", *params.Level))
	}
	if params.GateReason != nil {
		conditions = append(conditions, "has(gate_reasons, @gate_reason)")
		args = append(args, clickhouse.Named("gate_reason", *params.GateReason))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	// Count query
	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM audit_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	// Data query
	dataQuery := fmt.Sprintf(
		"SELECT event_id, event_type, timestamp, project_id, "+
			"actor_key_id, actor, sanitize_level, gate_reasons, metadata, latency_ms "+
			"FROM audit_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.EventID, &e.EventType, &e.Timestamp, &e.ProjectID,
			&e.ActorKeyID, &e.Actor, &e.SanitizeLevel, &e.GateReasons,
			&e.Metadata, &e.LatencyMs,
		); err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// TypeCount holds an event type and its count.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// ReasonCount holds a gate reason and its count.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// SummaryResult holds aggregate audit-trail counts for one project.
type SummaryResult struct {
	TotalEvents    int           `json:"total_events"`
	GateBlocked    int           `json:"gate_blocked"`
	ReportsRefused int           `json:"reports_refused"`
	ByType         []TypeCount   `json:"by_type"`
	TopGateReasons []ReasonCount `json:"top_gate_reasons"`
}

// GetSummary returns aggregated audit counts for a project over the
// given number of days.
func (r *Reader) GetSummary(ctx context.Context, projectID int64, days int) (*SummaryResult, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	args := []any{
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &SummaryResult{}

	var total, blocked, refused uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(event_type = 'gate_blocked') as blocked, "+
			"countIf(event_type = 'report_refused') as refused "+
			"FROM audit_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start",
		args...,
	).Scan(&total, &blocked, &refused)
	if err != nil {
		return nil, fmt.Errorf("GetSummary: %w", err)
	}
	result.TotalEvents = int(total)
	result.GateBlocked = int(blocked)
	result.ReportsRefused = int(refused)

	typeRows, err := r.conn.Query(ctx,
		"SELECT event_type, count() as count "+
			"FROM audit_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start "+
			"GROUP BY event_type ORDER BY count DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetSummary by_type: %w", err)
	}
	defer func() { _ = typeRows.Close() }()
	for typeRows.Next() {
		var et string
		var count uint64
		if err := typeRows.Scan(&et, &count); err != nil {
			return nil, fmt.Errorf("GetSummary by_type scan: %w", err)
		}
		result.ByType = append(result.ByType, TypeCount{EventType: et, Count: int(count)})
	}

	reasonRows, err := r.conn.Query(ctx,
		"SELECT arrayJoin(gate_reasons) as reason, count() as count "+
			"FROM audit_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start "+
			"GROUP BY reason ORDER BY count DESC LIMIT 10",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetSummary reasons: %w", err)
	}
	defer func() { _ = reasonRows.Close() }()
	for reasonRows.Next() {
		var reason string
		var count uint64
		if err := reasonRows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("GetSummary reasons scan: %w", err)
		}
		result.TopGateReasons = append(result.TopGateReasons, ReasonCount{Reason: reason, Count: int(count)})
	}

	// Ensure slices are non-nil for JSON serialization
	if result.ByType == nil {
		result.ByType = []TypeCount{}
	}
	if result.TopGateReasons == nil {
		result.TopGateReasons = []ReasonCount{}
	}

	return result, nil
}
