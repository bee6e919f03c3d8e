package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one collection event in the journal. Payments are never
// updated in place; they are recorded or deleted (reversed).
type Payment struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	LoanID      uuid.UUID       `json:"loan_id" db:"loan_id"`
	BorrowerID  uuid.UUID       `json:"borrower_id" db:"borrower_id"`
	AgentID     uuid.UUID       `json:"agent_id" db:"agent_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PaymentDetail is a journal entry joined with the names and loan figures
// the dashboard shows next to it.
type PaymentDetail struct {
	Payment
	BorrowerName             *string             `json:"borrower_name" db:"borrower_name"`
	BorrowerPhone            *string             `json:"borrower_phone" db:"borrower_phone"`
	AgentName                *string             `json:"agent_name" db:"agent_name"`
	LoanPrincipalAmount      decimal.NullDecimal `json:"loan_principal_amount" db:"loan_principal_amount"`
	LoanAmountPaidToBorrower decimal.NullDecimal `json:"loan_amount_paid_to_borrower" db:"loan_amount_paid_to_borrower"`
	LoanRemainingAmount      decimal.NullDecimal `json:"loan_remaining_amount" db:"loan_remaining_amount"`
	LoanStatus               *string             `json:"loan_status" db:"loan_status"`
}

// PaymentFilter narrows journal queries. Zero fields do not filter; date
// bounds are inclusive.
type PaymentFilter struct {
	BorrowerID *uuid.UUID
	LoanID     *uuid.UUID
	AgentID    *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
}

// DTOs for requests and responses

type RecordPaymentRequest struct {
	LoanID      uuid.UUID       `json:"loan_id" validate:"required"`
	BorrowerID  *uuid.UUID      `json:"borrower_id"`
	AgentID     *uuid.UUID      `json:"agent_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid" validate:"gt=0"`
	PaymentDate *time.Time      `json:"payment_date"`
}

type PaymentResponse struct {
	Payment     *Payment `json:"payment"`
	UpdatedLoan *Loan    `json:"updated_loan"`
}

type LoanPaymentsResponse struct {
	Loan     *Loan            `json:"loan"`
	Payments []*PaymentDetail `json:"payments"`
}

type PaymentReport struct {
	TotalPayments             int              `json:"total_payments"`
	TotalAmountPaid           decimal.Decimal  `json:"total_amount_paid"`
	TotalAmountPaidToBorrower decimal.Decimal  `json:"total_amount_paid_to_borrower"`
	TotalPrincipalAmount      decimal.Decimal  `json:"total_principal_amount"`
	Payments                  []*PaymentDetail `json:"payments"`
}

// AgentCollection is one agent's share of a day's collections.
type AgentCollection struct {
	AgentID         uuid.UUID       `json:"agent_id" db:"agent_id"`
	AgentName       *string         `json:"agent_name" db:"agent_name"`
	PaymentCount    int             `json:"payment_count" db:"payment_count"`
	TotalAmountPaid decimal.Decimal `json:"total_amount_paid" db:"total_amount_paid"`
}

type DailySummary struct {
	Date            string             `json:"date"`
	Timezone        string             `json:"timezone"`
	TotalPayments   int                `json:"total_payments"`
	TotalAmountPaid decimal.Decimal    `json:"total_amount_paid"`
	Agents          []*AgentCollection `json:"agents"`
}

// LoanDiscrepancy describes a loan whose stored balance disagrees with its
// journal.
type LoanDiscrepancy struct {
	LoanID               uuid.UUID       `json:"loan_id"`
	AmountPaidByBorrower decimal.Decimal `json:"amount_paid_by_borrower"`
	ImportedPaidAmount   decimal.Decimal `json:"imported_paid_amount"`
	JournalTotal         decimal.Decimal `json:"journal_total"`
	RemainingAmount      decimal.Decimal `json:"remaining_amount"`
	ExpectedRemaining    decimal.Decimal `json:"expected_remaining"`
	Reason               string          `json:"reason"`
}

type ReconciliationReport struct {
	CheckedLoans  int                `json:"checked_loans"`
	Discrepancies []*LoanDiscrepancy `json:"discrepancies"`
	CheckedAt     time.Time          `json:"checked_at"`
}
