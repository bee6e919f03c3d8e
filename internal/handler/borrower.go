package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/pkg/response"
)

type BorrowerHandler struct {
	service   BorrowerService
	validator *validator.Validate
}

func NewBorrowerHandler(service BorrowerService, validator *validator.Validate) *BorrowerHandler {
	return &BorrowerHandler{service: service, validator: validator}
}

func (h *BorrowerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBorrowerRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	borrower, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, "Borrower created successfully", borrower)
}

func (h *BorrowerHandler) List(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.service.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, borrowers)
}

func (h *BorrowerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	borrower, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, borrower)
}

func (h *BorrowerHandler) SearchByPhone(w http.ResponseWriter, r *http.Request) {
	borrower, err := h.service.FindByPhone(r.Context(), mux.Vars(r)["phone"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, borrower)
}

func (h *BorrowerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.UpdateBorrowerRequest
	if err := decode(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	borrower, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Borrower updated successfully", borrower)
}

// Delete deactivates the borrower; the record and its loans stay.
func (h *BorrowerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	borrower, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WithMessage(w, http.StatusOK, "Borrower deactivated successfully", borrower)
}
