package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

type BorrowerService interface {
	Create(ctx context.Context, req *domain.CreateBorrowerRequest) (*domain.Borrower, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Borrower, error)
	List(ctx context.Context) ([]*domain.Borrower, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.UpdateBorrowerRequest) (*domain.Borrower, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)
}

type UserService interface {
	Register(ctx context.Context, req *domain.RegisterUserRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	ListAgents(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type LedgerService interface {
	CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error)
	GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	ListLoansByAgent(ctx context.Context, agentID uuid.UUID) ([]*domain.Loan, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Loan, error)
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest) (*domain.PaymentResponse, error)
	PayLoan(ctx context.Context, loanID, agentID uuid.UUID, req *domain.PayLoanRequest) (*domain.PaymentResponse, error)
	DeletePayment(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	ListPayments(ctx context.Context) ([]*domain.PaymentDetail, error)
	ListLoanPayments(ctx context.Context, loanID uuid.UUID) (*domain.LoanPaymentsResponse, error)
	ListBorrowerPayments(ctx context.Context, borrowerID uuid.UUID) ([]*domain.PaymentDetail, error)
	ListPaymentsForDay(ctx context.Context, offsetDays int) ([]*domain.PaymentDetail, error)
}

type ReportService interface {
	PaymentReport(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentReport, error)
	DailySummary(ctx context.Context, day time.Time) (*domain.DailySummary, error)
	Reconcile(ctx context.Context) (*domain.ReconciliationReport, error)
}

// NewValidator returns a validator that compares decimal fields as numbers,
// so gt/gte tags work on money.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decode reads a JSON body into dst and validates it. Failures come back as
// validation errors.
func decode(r *http.Request, v *validator.Validate, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validation("Invalid request body: " + err.Error())
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return apperrors.Validation("Validation failed: " + strings.Join(fields, ", "))
		}
		return apperrors.Validation(err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validationf("Invalid %s: %q", name, raw)
	}
	return id, nil
}
