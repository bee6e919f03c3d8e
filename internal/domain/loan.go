package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

const (
	LoanStatusActive    = "active"
	LoanStatusCompleted = "completed"
	LoanStatusOverdue   = "overdue"
)

// LoanMode selects how disbursement economics are derived at origination.
type LoanMode string

const (
	LoanModeRateBased    LoanMode = "rate_based"
	LoanModeDirectAmount LoanMode = "direct_amount"
	LoanModeInProgress   LoanMode = "in_progress"
)

var hundred = decimal.NewFromInt(100)

// Loan represents a loan entity
type Loan struct {
	ID                       uuid.UUID           `json:"id" db:"id"`
	BorrowerID               uuid.UUID           `json:"borrower_id" db:"borrower_id"`
	AssignedAgentID          uuid.NullUUID       `json:"assigned_agent_id" db:"assigned_agent_id"`
	Mode                     LoanMode            `json:"mode" db:"mode"`
	PrincipalAmount          decimal.Decimal     `json:"principal_amount" db:"principal_amount"`
	InterestRate             decimal.NullDecimal `json:"interest_rate" db:"interest_rate"`
	InitialInterestDeduction decimal.Decimal     `json:"initial_interest_deduction" db:"initial_interest_deduction"`
	AmountPaidToBorrower     decimal.Decimal     `json:"amount_paid_to_borrower" db:"amount_paid_to_borrower"`
	InstallmentCount         int                 `json:"installment_count" db:"installment_count"`
	InstallmentAmount        decimal.Decimal     `json:"installment_amount" db:"installment_amount"`
	AmountPaidByBorrower     decimal.Decimal     `json:"amount_paid_by_borrower" db:"amount_paid_by_borrower"`
	ImportedPaidAmount       decimal.Decimal     `json:"imported_paid_amount" db:"imported_paid_amount"`
	RemainingAmount          decimal.Decimal     `json:"remaining_amount" db:"remaining_amount"`
	StartDate                time.Time           `json:"start_date" db:"start_date"`
	Status                   string              `json:"status" db:"status"`
	CreatedAt                time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time           `json:"updated_at" db:"updated_at"`
}

// LoanTerms is the mode-specific part of an origination. Each mode carries
// only the inputs it needs.
type LoanTerms interface {
	Mode() LoanMode
	disburse(principal decimal.Decimal) (disbursement, error)
}

type disbursement struct {
	interestRate   decimal.NullDecimal
	deduction      decimal.Decimal
	paidToBorrower decimal.Decimal
	paidByBorrower decimal.Decimal
}

// RateBased withholds InterestRatePercent of the principal up front.
type RateBased struct {
	InterestRatePercent decimal.Decimal
}

func (RateBased) Mode() LoanMode { return LoanModeRateBased }

func (t RateBased) disburse(principal decimal.Decimal) (disbursement, error) {
	if t.InterestRatePercent.IsNegative() || t.InterestRatePercent.GreaterThan(hundred) {
		return disbursement{}, apperrors.Validation("Interest rate must be between 0 and 100")
	}
	deduction := utils.CalculateInterestDeduction(principal, t.InterestRatePercent)
	return disbursement{
		interestRate:   decimal.NewNullDecimal(t.InterestRatePercent),
		deduction:      deduction,
		paidToBorrower: principal.Sub(deduction),
		paidByBorrower: decimal.Zero,
	}, nil
}

// DirectAmount states the cash handed to the borrower; the difference to the
// principal is the interest deduction.
type DirectAmount struct {
	AmountPaidToBorrower decimal.Decimal
}

func (DirectAmount) Mode() LoanMode { return LoanModeDirectAmount }

func (t DirectAmount) disburse(principal decimal.Decimal) (disbursement, error) {
	deduction, err := directDeduction(principal, t.AmountPaidToBorrower)
	if err != nil {
		return disbursement{}, err
	}
	return disbursement{
		deduction:      deduction,
		paidToBorrower: t.AmountPaidToBorrower,
		paidByBorrower: decimal.Zero,
	}, nil
}

// InProgressImport brings an already running loan into the ledger together
// with what the borrower has repaid so far.
type InProgressImport struct {
	AmountPaidToBorrower decimal.Decimal
	AmountPaidByBorrower decimal.Decimal
}

func (InProgressImport) Mode() LoanMode { return LoanModeInProgress }

func (t InProgressImport) disburse(principal decimal.Decimal) (disbursement, error) {
	deduction, err := directDeduction(principal, t.AmountPaidToBorrower)
	if err != nil {
		return disbursement{}, err
	}
	if t.AmountPaidByBorrower.IsNegative() {
		return disbursement{}, apperrors.Validation("Amount paid by borrower cannot be negative")
	}
	return disbursement{
		deduction:      deduction,
		paidToBorrower: t.AmountPaidToBorrower,
		paidByBorrower: t.AmountPaidByBorrower,
	}, nil
}

func directDeduction(principal, paidToBorrower decimal.Decimal) (decimal.Decimal, error) {
	if !paidToBorrower.IsPositive() {
		return decimal.Zero, apperrors.Validation("Amount paid to borrower must be greater than 0")
	}
	deduction := principal.Sub(paidToBorrower)
	if deduction.IsNegative() {
		return decimal.Zero, apperrors.Validation("Amount paid cannot exceed principal amount")
	}
	return deduction, nil
}

// NewLoanParams carries everything an origination needs once the borrower
// has been resolved.
type NewLoanParams struct {
	BorrowerID       uuid.UUID
	AssignedAgentID  uuid.NullUUID
	PrincipalAmount  decimal.Decimal
	InstallmentCount int
	StartDate        time.Time
	Terms            LoanTerms
}

// NewLoan computes the disbursement economics and the opening balance.
func NewLoan(p NewLoanParams, now time.Time) (*Loan, error) {
	if p.Terms == nil {
		return nil, apperrors.Validation("Loan mode is required")
	}
	if !p.PrincipalAmount.IsPositive() {
		return nil, apperrors.Validation("Principal amount must be greater than 0")
	}
	if p.InstallmentCount <= 0 {
		return nil, apperrors.Validation("Installment count must be greater than 0")
	}

	d, err := p.Terms.disburse(p.PrincipalAmount)
	if err != nil {
		return nil, err
	}

	startDate := p.StartDate
	if startDate.IsZero() {
		startDate = now
	}

	loan := &Loan{
		ID:                       uuid.New(),
		BorrowerID:               p.BorrowerID,
		AssignedAgentID:          p.AssignedAgentID,
		Mode:                     p.Terms.Mode(),
		PrincipalAmount:          p.PrincipalAmount,
		InterestRate:             d.interestRate,
		InitialInterestDeduction: d.deduction,
		AmountPaidToBorrower:     d.paidToBorrower,
		InstallmentCount:         p.InstallmentCount,
		InstallmentAmount:        utils.CalculateInstallmentAmount(p.PrincipalAmount, p.InstallmentCount),
		AmountPaidByBorrower:     d.paidByBorrower,
		ImportedPaidAmount:       d.paidByBorrower,
		StartDate:                startDate,
		Status:                   LoanStatusActive,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	loan.settle()

	return loan, nil
}

// ApplyPayment books a repayment against the running balance. With
// rejectOverpayment set, amounts above the remaining balance are refused;
// otherwise the balance is clamped at zero.
func (l *Loan) ApplyPayment(amount decimal.Decimal, rejectOverpayment bool) error {
	if !amount.IsPositive() {
		return apperrors.Validation("Payment amount must be greater than 0")
	}
	if rejectOverpayment && amount.GreaterThan(l.RemainingAmount) {
		return apperrors.WrapOverpayment(amount.String(), l.RemainingAmount.String())
	}

	l.AmountPaidByBorrower = l.AmountPaidByBorrower.Add(amount)
	l.settle()
	return nil
}

// ReversePayment is the exact inverse of ApplyPayment. A completed loan
// whose balance becomes positive again is reopened; an overdue loan keeps
// its manually assigned status.
func (l *Loan) ReversePayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation("Payment amount must be greater than 0")
	}

	l.AmountPaidByBorrower = l.AmountPaidByBorrower.Sub(amount)
	if l.settle() && l.Status == LoanStatusCompleted {
		l.Status = LoanStatusActive
	}
	return nil
}

// settle recomputes RemainingAmount from principal and repayments and marks
// the loan completed once nothing is owed. It reports whether a balance is
// still outstanding.
func (l *Loan) settle() bool {
	remaining := l.PrincipalAmount.Sub(l.AmountPaidByBorrower)
	if !remaining.IsPositive() {
		l.RemainingAmount = decimal.Zero
		l.Status = LoanStatusCompleted
		return false
	}
	l.RemainingAmount = remaining
	return true
}

// ExpectedRemaining is the balance implied by principal and repayments.
func (l *Loan) ExpectedRemaining() decimal.Decimal {
	remaining := l.PrincipalAmount.Sub(l.AmountPaidByBorrower)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// StatusContradictsBalance reports a manually forced status that disagrees
// with the balance: completed with money still owed, or open with none.
func (l *Loan) StatusContradictsBalance() bool {
	if l.Status == LoanStatusCompleted {
		return l.RemainingAmount.IsPositive()
	}
	return !l.RemainingAmount.IsPositive()
}

// ValidLoanStatus reports whether status is a known loan status.
func ValidLoanStatus(status string) bool {
	switch status {
	case LoanStatusActive, LoanStatusCompleted, LoanStatusOverdue:
		return true
	}
	return false
}

// DTOs for requests and responses

// CreateLoanRequest is the single origination payload for every mode. The
// borrower is either referenced by BorrowerID or created from NewBorrower.
type CreateLoanRequest struct {
	Mode                 LoanMode               `json:"mode" validate:"omitempty,oneof=rate_based direct_amount in_progress"`
	BorrowerID           *uuid.UUID             `json:"borrower_id"`
	NewBorrower          *CreateBorrowerRequest `json:"new_borrower"`
	AssignedAgentID      *uuid.UUID             `json:"assigned_agent_id"`
	PrincipalAmount      decimal.Decimal        `json:"principal_amount" validate:"gt=0"`
	InterestRate         *decimal.Decimal       `json:"interest_rate" validate:"omitempty,gte=0"`
	AmountPaidToBorrower *decimal.Decimal       `json:"amount_paid_to_borrower" validate:"omitempty,gt=0"`
	AmountPaidByBorrower *decimal.Decimal       `json:"amount_paid_by_borrower" validate:"omitempty,gte=0"`
	InstallmentCount     *int                   `json:"installment_count"`
	StartDate            *time.Time             `json:"start_date"`
}

// ResolvedMode returns the explicit mode or infers it from the fields present.
func (r *CreateLoanRequest) ResolvedMode() LoanMode {
	switch {
	case r.Mode != "":
		return r.Mode
	case r.InterestRate != nil:
		return LoanModeRateBased
	case r.AmountPaidByBorrower != nil:
		return LoanModeInProgress
	default:
		return LoanModeDirectAmount
	}
}

// Terms builds the mode-specific terms, checking that the fields the mode
// needs are present.
func (r *CreateLoanRequest) Terms() (LoanTerms, error) {
	switch mode := r.ResolvedMode(); mode {
	case LoanModeRateBased:
		if r.InterestRate == nil {
			return nil, apperrors.Validation("interest_rate is required for rate_based loans")
		}
		return RateBased{InterestRatePercent: *r.InterestRate}, nil
	case LoanModeDirectAmount:
		if r.AmountPaidToBorrower == nil {
			return nil, apperrors.Validation("amount_paid_to_borrower is required")
		}
		return DirectAmount{AmountPaidToBorrower: *r.AmountPaidToBorrower}, nil
	case LoanModeInProgress:
		if r.AmountPaidToBorrower == nil || r.AmountPaidByBorrower == nil {
			return nil, apperrors.Validation("amount_paid_to_borrower and amount_paid_by_borrower are required for in_progress loans")
		}
		return InProgressImport{
			AmountPaidToBorrower: *r.AmountPaidToBorrower,
			AmountPaidByBorrower: *r.AmountPaidByBorrower,
		}, nil
	default:
		return nil, apperrors.Validationf("unknown loan mode %q", mode)
	}
}

type UpdateLoanStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed overdue"`
}

type PayLoanRequest struct {
	AmountPaid  decimal.Decimal `json:"amount_paid" validate:"gt=0"`
	PaymentDate *time.Time      `json:"payment_date"`
}

type CreateLoanResponse struct {
	Loan            *Loan `json:"loan"`
	BorrowerCreated bool  `json:"borrower_created"`
}
