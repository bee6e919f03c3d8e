package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/middleware"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/response"
)

type PaymentHandler struct {
	ledger    LedgerService
	reports   ReportService
	validator *validator.Validate
	location  *time.Location
}

func NewPaymentHandler(ledger LedgerService, reports ReportService, validator *validator.Validate, location *time.Location) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, reports: reports, validator: validator, location: location}
}

// Create records a payment. Agents always collect as themselves; an admin
// may name the collecting agent and defaults to themselves.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordPaymentRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || claims == nil {
		response.FromError(w, apperrors.Unauthorized("Authentication required"))
		return
	}
	if req.AgentID == nil || claims.Role != domain.RoleAdmin {
		req.AgentID = &callerID
	}

	resp, err := h.ledger.RecordPayment(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, "Payment recorded successfully", resp)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.ledger.ListPayments(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

func (h *PaymentHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.forDay(w, r, 0)
}

func (h *PaymentHandler) Yesterday(w http.ResponseWriter, r *http.Request) {
	h.forDay(w, r, -1)
}

func (h *PaymentHandler) forDay(w http.ResponseWriter, r *http.Request, offset int) {
	payments, err := h.ledger.ListPaymentsForDay(r.Context(), offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

func (h *PaymentHandler) ByLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	resp, err := h.ledger.ListLoanPayments(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, resp)
}

func (h *PaymentHandler) ByBorrower(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	payments, err := h.ledger.ListBorrowerPayments(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

// Report filters the journal by borrower_id, loan_id, agent_id, start_date
// and end_date. Bare dates cover the whole day in the business timezone.
func (h *PaymentHandler) Report(w http.ResponseWriter, r *http.Request) {
	filter, err := h.reportFilter(r.URL.Query())
	if err != nil {
		response.FromError(w, err)
		return
	}

	report, err := h.reports.PaymentReport(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, report)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.ledger.DeletePayment(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Payment deleted successfully", loan)
}

func (h *PaymentHandler) reportFilter(q url.Values) (domain.PaymentFilter, error) {
	var filter domain.PaymentFilter
	var err error

	if filter.BorrowerID, err = queryID(q, "borrower_id"); err != nil {
		return filter, err
	}
	if filter.LoanID, err = queryID(q, "loan_id"); err != nil {
		return filter, err
	}
	if filter.AgentID, err = queryID(q, "agent_id"); err != nil {
		return filter, err
	}
	if filter.StartDate, err = queryDate(q, "start_date", h.location, false); err != nil {
		return filter, err
	}
	if filter.EndDate, err = queryDate(q, "end_date", h.location, true); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryID(q url.Values, name string) (*uuid.UUID, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Validationf("Invalid %s: %q", name, raw)
	}
	return &id, nil
}

// queryDate accepts RFC 3339 timestamps or YYYY-MM-DD dates. A date used as
// an upper bound extends to the last instant of that day.
func queryDate(q url.Values, name string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, apperrors.Validationf("Invalid %s: %q, expected YYYY-MM-DD", name, raw)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
