package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// TxManager runs fn inside a database transaction carried by the context.
// Repository calls made with that context join the transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithinSnapshot runs fn in a read-only transaction whose statements all
	// see the same committed state.
	WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// BorrowerRepository defines the interface for borrower data operations
type BorrowerRepository interface {
	// Create inserts a borrower; a taken phone yields a conflict error
	Create(ctx context.Context, borrower *domain.Borrower) error

	// GetByID retrieves a borrower by ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)

	// GetByPhone retrieves a borrower by normalised phone number
	GetByPhone(ctx context.Context, phone string) (*domain.Borrower, error)

	// List returns all borrowers, newest first
	List(ctx context.Context) ([]*domain.Borrower, error)

	// Update persists name, phone and active flag
	Update(ctx context.Context, borrower *domain.Borrower) error
}

// UserRepository defines the interface for staff account data operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// List returns users newest first, optionally restricted to one role
	List(ctx context.Context, role string) ([]*domain.User, error)

	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and locks its row until the
	// surrounding transaction ends (postgres only)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// List returns all loans, newest first
	List(ctx context.Context) ([]*domain.Loan, error)

	// ListByAgent returns the loans assigned to an agent, newest first
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*domain.Loan, error)

	// UpdateBalance persists paid, remaining and status after a payment
	UpdateBalance(ctx context.Context, loan *domain.Loan) error

	// UpdateStatus overwrites the status only
	UpdateStatus(ctx context.Context, loan *domain.Loan) error

	// Delete removes a loan
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository defines the interface for payment journal operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// Delete removes a payment record
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByLoanID removes every payment of a loan and reports how many
	DeleteByLoanID(ctx context.Context, loanID uuid.UUID) (int64, error)

	// CountByLoanID counts the payments recorded against a loan
	CountByLoanID(ctx context.Context, loanID uuid.UUID) (int, error)

	// ListDetails returns matching payments with borrower, agent and loan
	// columns joined in, newest first
	ListDetails(ctx context.Context, filter domain.PaymentFilter) ([]*domain.PaymentDetail, error)

	// JournalTotals sums recorded payments per loan
	JournalTotals(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}
