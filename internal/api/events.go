package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/chread"
)

// handleListEvents implements GET /v1/projects/{project_id}/events.
// Query params: event_type, level, gate_reason, start_time, end_time
// (RFC 3339), page, page_size.
func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event store unavailable"})
		return
	}

	q := r.URL.Query()
	params := chread.ListEventsParams{
		ProjectID: projectID,
		Page:      1,
		PageSize:  50,
	}

	if v := q.Get("event_type"); v != "" {
		params.EventType = &v
	}
	if v := q.Get("level"); v != "" {
		params.Level = &v
	}
	if v := q.Get("gate_reason"); v != "" {
		params.GateReason = &v
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid start_time"})
			return
		}
		params.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid end_time"})
			return
		}
		params.EndTime = &t
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			params.PageSize = n
		}
	}

	events, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}
	if events == nil {
		events = []chread.EventRow{}
	}

	writeJSON(w, http.StatusOK, EventListResp{
		Events:   events,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// handleEventsSummary implements GET /v1/projects/{project_id}/events/summary.
// Query param: days (default 7).
func (d *Dependencies) handleEventsSummary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event store unavailable"})
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "days must be 1-365"})
			return
		}
		days = n
	}

	summary, err := d.Reader.GetSummary(r.Context(), projectID, days)
	if err != nil {
		d.Logger.Error("failed to get events summary", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get summary"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
