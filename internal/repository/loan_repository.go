package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

const loanColumns = `id, borrower_id, assigned_agent_id, mode, principal_amount, interest_rate,
	initial_interest_deduction, amount_paid_to_borrower, installment_count, installment_amount,
	amount_paid_by_borrower, imported_paid_amount, remaining_amount, start_date, status,
	created_at, updated_at`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := c.ExecContext(ctx, query,
		loan.ID,
		loan.BorrowerID,
		loan.AssignedAgentID,
		loan.Mode,
		loan.PrincipalAmount,
		loan.InterestRate,
		loan.InitialInterestDeduction,
		loan.AmountPaidToBorrower,
		loan.InstallmentCount,
		loan.InstallmentAmount,
		loan.AmountPaidByBorrower,
		loan.ImportedPaidAmount,
		loan.RemainingAmount,
		loan.StartDate.UTC(),
		loan.Status,
		loan.CreatedAt.UTC(),
		loan.UpdatedAt.UTC(),
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, id, false)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, id, true)
}

func (r *loanRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*domain.Loan, error) {
	c := conn(ctx, r.db)
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
	// sqlite serialises writers itself and has no row locks.
	if lock && c.DriverName() == DriverPostgres {
		query += ` FOR UPDATE`
	}

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, c, &loan, c.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("Loan", id.String())
		}
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY created_at DESC`

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &loans, query); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*domain.Loan, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE assigned_agent_id = ? ORDER BY created_at DESC`)

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, c, &loans, query, agentID); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) UpdateBalance(ctx context.Context, loan *domain.Loan) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		UPDATE loans
		SET amount_paid_by_borrower = ?, remaining_amount = ?, status = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := c.ExecContext(ctx, query,
		loan.AmountPaidByBorrower,
		loan.RemainingAmount,
		loan.Status,
		loan.UpdatedAt.UTC(),
		loan.ID,
	)
	if err != nil {
		return err
	}

	return expectAffected(res, "Loan", loan.ID)
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loan *domain.Loan) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`UPDATE loans SET status = ?, updated_at = ? WHERE id = ?`)

	res, err := c.ExecContext(ctx, query, loan.Status, loan.UpdatedAt.UTC(), loan.ID)
	if err != nil {
		return err
	}

	return expectAffected(res, "Loan", loan.ID)
}

func (r *loanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	c := conn(ctx, r.db)

	res, err := c.ExecContext(ctx, c.Rebind(`DELETE FROM loans WHERE id = ?`), id)
	if err != nil {
		return err
	}

	return expectAffected(res, "Loan", id)
}
