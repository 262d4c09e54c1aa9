package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/ports"
	"go.uber.org/zap"
)

// Handler serves the notifier JSON API
type Handler struct {
	runner ports.ReminderRunner
	logger *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(runner ports.ReminderRunner, logger *zap.Logger) *Handler {
	return &Handler{
		runner: runner,
		logger: logger,
	}
}

// Health reports liveness and the ledger backend chosen at startup
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"ledger_backend": h.runner.Backend(),
	})
}

// Employees returns the canonical employee records
func (h *Handler) Employees(w http.ResponseWriter, r *http.Request) {
	records, err := h.runner.Records(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(records),
		"employees": records,
	})
}

// SendReminders runs the reminder pipeline
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	dryRun, err := boolParam(r, "dry_run")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	summary, err := h.runner.RunReminders(r.Context(), dryRun)
	h.writeRun(w, summary, err)
}

// NotifySeparations runs the separation pipeline for an optional from/to range
func (h *Handler) NotifySeparations(w http.ResponseWriter, r *http.Request) {
	dryRun, err := boolParam(r, "dry_run")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rng, err := h.separationRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	summary, err := h.runner.NotifySeparations(r.Context(), rng, dryRun)
	h.writeRun(w, summary, err)
}

// SentEmails lists the ledger entries of one day, today by default
func (h *Handler) SentEmails(w http.ResponseWriter, r *http.Request) {
	day := h.runner.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		day = parsed
	}

	summary, err := h.runner.SentSummary(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*core.SentSummary
	}{true, summary})
}

// Debug shows how every record is interpreted today
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	rows, err := h.runner.Preview(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"today":          h.runner.Today().Format(core.DateLayout),
		"ledger_backend": h.runner.Backend(),
		"total":          len(rows),
		"employees":      rows,
	})
}

func (h *Handler) separationRange(r *http.Request) (*core.DateRange, error) {
	q := r.URL.Query()
	rawFrom, rawTo := q.Get("from"), q.Get("to")
	if rawFrom == "" && rawTo == "" {
		return nil, nil
	}

	today := h.runner.Today()
	from, to := today, today
	var err error
	if rawFrom != "" {
		if from, err = core.ParseDate(rawFrom); err != nil {
			return nil, err
		}
	}
	if rawTo != "" {
		if to, err = core.ParseDate(rawTo); err != nil {
			return nil, err
		}
	}

	rng, err := core.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// runResponse wraps a pipeline summary
type runResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Summary *core.RunSummary `json:"summary,omitempty"`
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) writeRun(w http.ResponseWriter, summary *core.RunSummary, err error) {
	if err != nil {
		h.logger.Error("Pipeline run failed", zap.Error(err))
		writeJSON(w, statusFor(err), runResponse{Error: err.Error(), Summary: summary})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Success: true, Summary: summary})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSourceFetch):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + name + " parameter: " + raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
