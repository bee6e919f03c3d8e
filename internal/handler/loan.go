package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/middleware"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/response"
)

type LoanHandler struct {
	service   LedgerService
	validator *validator.Validate
}

func NewLoanHandler(service LedgerService, validator *validator.Validate) *LoanHandler {
	return &LoanHandler{service: service, validator: validator}
}

func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	resp, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, "Loan created successfully", resp)
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loans)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) ListByAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := pathID(r, "agentId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	loans, err := h.service.ListLoansByAgent(r.Context(), agentID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loans)
}

// Pay records a repayment collected by the authenticated user.
func (h *LoanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	agentID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.FromError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req domain.PayLoanRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	resp, err := h.service.PayLoan(r.Context(), id, agentID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Payment processed successfully", resp)
}

func (h *LoanHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.UpdateLoanStatusRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Loan status updated successfully", loan)
}

func (h *LoanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := h.service.DeleteLoan(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Loan deleted successfully", nil)
}
