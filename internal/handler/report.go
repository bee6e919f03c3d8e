package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/segyhp/lending-ledger/pkg/response"
)

type ReportHandler struct {
	service  ReportService
	location *time.Location
	now      func() time.Time
}

func NewReportHandler(service ReportService, location *time.Location) *ReportHandler {
	return &ReportHandler{service: service, location: location, now: time.Now}
}

func (h *ReportHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	if len(report.Discrepancies) > 0 {
		slog.Warn("reconciliation found discrepancies", "count", len(report.Discrepancies))
	}
	response.Success(w, report)
}

// DailySummary reports the day given by ?date=YYYY-MM-DD, or today.
func (h *ReportHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if d, err := queryDate(r.URL.Query(), "date", h.location, false); err != nil {
		response.FromError(w, err)
		return
	} else if d != nil {
		day = *d
	}

	summary, err := h.service.DailySummary(r.Context(), day)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, summary)
}
