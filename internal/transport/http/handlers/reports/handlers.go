package reportshandler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/reports"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type ReportService interface {
	Payables(ctx context.Context, session auth.Session, filter reports.Filter) (reports.Report, error)
	PeriodSummary(ctx context.Context, session auth.Session, periodID string) (reports.Summary, error)
	Export(ctx context.Context, session auth.Session, filter reports.Filter, format string, w io.Writer) error
	Dashboard(ctx context.Context, session auth.Session) (reports.Dashboard, error)
	JobRuns(ctx context.Context, session auth.Session, jobType string, limit, offset int) ([]reports.JobRun, error)
}

type Handler struct {
	Reports ReportService
	Audit   shared.Auditor
	Perms   middleware.PermissionStore
	now     func() time.Time
}

func NewHandler(service ReportService, auditor shared.Auditor, perms middleware.PermissionStore) *Handler {
	return &Handler{Reports: service, Audit: auditor, Perms: perms, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports/admin", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermReportsRead, h.Perms))
		r.Get("/payables", h.handlePayables)
		r.Get("/payables/export", h.handleExport)
		r.Get("/periods/{periodID}/summary", h.handlePeriodSummary)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/jobs", h.handleJobRuns)
	})
}

// parseFilter reads the payables filter from the query string. It returns
// false after writing a validation response.
func parseFilter(w http.ResponseWriter, r *http.Request) (reports.Filter, bool) {
	query := r.URL.Query()
	filter := reports.Filter{
		PeriodID:   strings.TrimSpace(query.Get("period_id")),
		Status:     strings.TrimSpace(query.Get("status")),
		PeriodType: strings.TrimSpace(query.Get("period_type")),
		UserID:     strings.TrimSpace(query.Get("user_id")),
	}
	v := shared.NewValidator()
	if raw := query.Get("start_date"); raw != "" {
		if start, ok := v.Date("start_date", raw); ok {
			filter.StartDate = &start
		}
	}
	if raw := query.Get("end_date"); raw != "" {
		if end, ok := v.Date("end_date", raw); ok {
			filter.EndDate = &end
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return reports.Filter{}, false
	}
	return filter, true
}

func (h *Handler) handlePayables(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	report, err := h.Reports.Payables(r.Context(), session, filter)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

// handleExport renders into memory first so a failed render still gets a JSON
// error instead of a truncated attachment.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	format, err := reports.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.Reports.Export(r.Context(), session, filter, format, &buf); err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "reports.payables.export", "report", "payables", nil, map[string]any{
		"format": format,
		"bytes":  buf.Len(),
	})

	w.Header().Set("Content-Type", reports.ContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename="+reports.Filename(format, h.now()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("payables export write failed", "format", format, "err", err)
	}
}

func (h *Handler) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	summary, err := h.Reports.PeriodSummary(r.Context(), session, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	dashboard, err := h.Reports.Dashboard(r.Context(), session)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, dashboard, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	runs, err := h.Reports.JobRuns(r.Context(), session, strings.TrimSpace(r.URL.Query().Get("job_type")), page.Limit, page.Offset)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}
