package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gridbalance/internal/audit"
	"gridbalance/internal/auth"
	"gridbalance/internal/balance/application"
	balance "gridbalance/internal/balance/domain"
	"gridbalance/internal/balance/interfaces"
	"gridbalance/internal/observability/metrics"
)

const timeLayout = time.RFC3339

// Triggerer dispatches manual fetch triggers to the scheduler layer.
type Triggerer interface {
	FetchNow(ctx context.Context, params application.IngestParams) (application.TriggerResult, error)
	Status() []application.SchedulerStatus
}

// Handler provides ingestion and balance query HTTP endpoints.
type Handler struct {
	manager Triggerer
	repo    balance.RecordRepository
	auditor audit.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAuditLogger enables audit logging of manual fetch triggers.
func WithAuditLogger(auditor audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditor = auditor
	}
}

// NewHandler constructs a handler.
func NewHandler(manager Triggerer, repo balance.RecordRepository, opts ...HandlerOption) (*Handler, error) {
	if manager == nil {
		return nil, errors.New("balance handler: nil scheduler manager")
	}
	if repo == nil {
		return nil, errors.New("balance handler: nil repository")
	}
	handler := &Handler{manager: manager, repo: repo}
	for _, opt := range opts {
		opt(handler)
	}
	return handler, nil
}

// ServeHTTP handles /api/v1/ingest/* and /api/v1/balances.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/ingest/fetch":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleFetch(w, r)
	case "/api/v1/ingest/status":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatus(w, r)
	case "/api/v1/balances":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case "/api/v1/balances/export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fetchRequest struct {
	Granularity string `json:"granularity"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	ForceUpdate bool   `json:"force_update"`
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	g, ok := balance.ParseGranularity(req.Granularity)
	if !ok {
		http.Error(w, "unknown granularity "+strconv.Quote(req.Granularity), http.StatusBadRequest)
		return
	}
	start, end, err := application.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.manager.FetchNow(r.Context(), application.IngestParams{
		Start:       start,
		End:         end,
		Granularity: g,
		ForceUpdate: req.ForceUpdate,
	})
	if err != nil {
		if balance.IsKind(err, balance.KindUnknownGranularity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.auditFetch(r, req, result)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (h *Handler) auditFetch(r *http.Request, req fetchRequest, result application.TriggerResult) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
		"force_update": req.ForceUpdate,
		"success":      result.Success,
		"message":      result.Message,
	})
	_ = h.auditor.Log(r.Context(), audit.Entry{
		Actor:       auth.SubjectFromContext(r.Context()),
		Role:        string(auth.RoleFromContext(r.Context())),
		Action:      "ingest.fetch",
		Granularity: req.Granularity,
		Metadata:    metadata,
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"schedulers": h.manager.Status(),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	g, start, end, err := parseRangeQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := balance.QueryOptions{
		Limit:  parseIntQuery(r, "limit"),
		Offset: parseIntQuery(r, "offset"),
	}

	records, err := h.repo.FindByRange(r.Context(), start, end, g, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*balance.BalanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"granularity": g,
		"from":        start,
		"to":          end,
		"count":       len(records),
		"records":     records,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	g, start, end, err := parseRangeQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	records, err := h.repo.FindByRange(r.Context(), start, end, g, balance.QueryOptions{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	started := time.Now()
	var (
		payload     []byte
		contentType string
		filename    string
	)
	switch format {
	case "xlsx":
		payload, err = interfaces.BuildBalanceXLSX(g, start, end, records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "balance-" + string(g) + ".xlsx"
	case "pdf":
		payload, err = interfaces.BuildBalancePDF(g, start, end, records)
		contentType = "application/pdf"
		filename = "balance-" + string(g) + ".pdf"
	default:
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func parseRangeQuery(r *http.Request) (balance.Granularity, time.Time, time.Time, error) {
	value := r.URL.Query().Get("granularity")
	g, ok := balance.ParseGranularity(value)
	if !ok {
		return "", time.Time{}, time.Time{}, errors.New("unknown granularity " + strconv.Quote(value))
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return "", time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return g, from, to, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseIntQuery(r *http.Request, key string) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
