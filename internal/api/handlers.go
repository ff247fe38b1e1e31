package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"village_tracker/internal/domain"
)

// Store is the query side of the snapshot time series.
type Store interface {
	Latest(ctx context.Context) (*domain.Snapshot, error)
	Range(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error)
}

// Runner triggers one ingestion run.
type Runner interface {
	RunOnce(ctx context.Context) (*domain.RunResult, error)
}

// Handler serves the dashboard-facing query API.
type Handler struct {
	store  Store
	runner Runner
	logger *slog.Logger
}

func NewHandler(store Store, runner Runner, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		logger: logger.With("component", "api"),
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/latest", h.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/history", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshots", h.handleSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/api/run", h.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/api/export.csv", h.handleExportCSV).Methods(http.MethodGet)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type snapshotResponse struct {
	ID            int64          `json:"id"`
	CapturedAt    time.Time      `json:"captured_at"`
	Counts        domain.Counts  `json:"counts"`
	TotalActive   int            `json:"total_active"`
	TotalPending  int            `json:"total_pending"`
	TotalRejected int            `json:"total_rejected"`
	Outcome       domain.Outcome `json:"outcome"`
}

func toSnapshotResponse(s *domain.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:            s.ID,
		CapturedAt:    s.CapturedAt,
		Counts:        s.Counts,
		TotalActive:   s.TotalActive,
		TotalPending:  s.TotalPending,
		TotalRejected: s.TotalRejected,
		Outcome:       s.Outcome,
	}
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Latest(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	h.writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

type historyPoint struct {
	CapturedAt time.Time      `json:"captured_at"`
	Active     int            `json:"active"`
	Pending    int            `json:"pending"`
	Rejected   int            `json:"rejected"`
	Outcome    domain.Outcome `json:"outcome"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	snaps, err := h.store.Range(r.Context(), from, to)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	points := make([]historyPoint, 0, len(snaps))
	for _, s := range snaps {
		points = append(points, historyPoint{
			CapturedAt: s.CapturedAt,
			Active:     s.TotalActive,
			Pending:    s.TotalPending,
			Rejected:   s.TotalRejected,
			Outcome:    s.Outcome,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"data": points})
}

func (h *Handler) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from", time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryTime(r, "to", time.Now().UTC())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	snaps, err := h.store.Range(r.Context(), from, to)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]snapshotResponse, 0, len(snaps))
	for i := range snaps {
		out = append(out, toSnapshotResponse(&snaps[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type runResponse struct {
	Outcome       domain.Outcome              `json:"outcome"`
	FailedStage   domain.Stage                `json:"failed_stage,omitempty"`
	CapturedAt    *time.Time                  `json:"captured_at,omitempty"`
	TotalActive   int                         `json:"total_active"`
	TotalPending  int                         `json:"total_pending"`
	RowsFetched   int                         `json:"rows_fetched"`
	Rejected      int                         `json:"rejected"`
	Rejects       map[domain.RejectReason]int `json:"rejects,omitempty"`
	Delta         domain.Counts               `json:"delta,omitempty"`
	DurationMs    int64                       `json:"duration_ms"`
	Error         string                      `json:"error,omitempty"`
}

// handleRun triggers a run synchronously. A failed run still answers with a
// full result so the dashboard can show what went wrong.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunOnce(r.Context())

	resp := runResponse{
		Outcome:     result.Outcome,
		FailedStage: result.FailedStage,
		RowsFetched: result.RowsFetched,
		Rejected:    result.Rejected,
		Rejects:     result.Rejects,
		Delta:       result.Delta,
		DurationMs:  result.Duration.Milliseconds(),
	}
	if result.Snapshot != nil {
		resp.CapturedAt = &result.Snapshot.CapturedAt
		resp.TotalActive = result.Snapshot.TotalActive
		resp.TotalPending = result.Snapshot.TotalPending
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
		h.logger.Error("triggered run failed", "stage", result.FailedStage, "error", err)
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 365)
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	snaps, err := h.store.Range(r.Context(), from, to)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="counts.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"run_at", "total_active", "total_pending", "total_rejected", "outcome"})
	for _, s := range snaps {
		_ = cw.Write([]string{
			s.CapturedAt.Format(time.RFC3339),
			strconv.Itoa(s.TotalActive),
			strconv.Itoa(s.TotalPending),
			strconv.Itoa(s.TotalRejected),
			string(s.Outcome),
		})
	}
	cw.Flush()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Error("request failed", "status", status, "error", err)
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func queryTime(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, v)
}
