package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

const paymentColumns = `id, loan_id, borrower_id, agent_id, amount_paid, payment_date, created_at`

const paymentDetailQuery = `
	SELECT p.id, p.loan_id, p.borrower_id, p.agent_id, p.amount_paid, p.payment_date, p.created_at,
		b.name AS borrower_name,
		b.phone AS borrower_phone,
		u.name AS agent_name,
		l.principal_amount AS loan_principal_amount,
		l.amount_paid_to_borrower AS loan_amount_paid_to_borrower,
		l.remaining_amount AS loan_remaining_amount,
		l.status AS loan_status
	FROM payments p
	LEFT JOIN borrowers b ON b.id = p.borrower_id
	LEFT JOIN users u ON u.id = p.agent_id
	LEFT JOIN loans l ON l.id = p.loan_id`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := c.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.BorrowerID,
		payment.AgentID,
		payment.AmountPaid,
		payment.PaymentDate.UTC(),
		payment.CreatedAt.UTC(),
	)

	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`)

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, c, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("Payment", id.String())
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	c := conn(ctx, r.db)

	res, err := c.ExecContext(ctx, c.Rebind(`DELETE FROM payments WHERE id = ?`), id)
	if err != nil {
		return err
	}

	return expectAffected(res, "Payment", id)
}

func (r *paymentRepository) DeleteByLoanID(ctx context.Context, loanID uuid.UUID) (int64, error) {
	c := conn(ctx, r.db)

	res, err := c.ExecContext(ctx, c.Rebind(`DELETE FROM payments WHERE loan_id = ?`), loanID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *paymentRepository) CountByLoanID(ctx context.Context, loanID uuid.UUID) (int, error) {
	c := conn(ctx, r.db)

	var count int
	err := sqlx.GetContext(ctx, c, &count, c.Rebind(`SELECT COUNT(*) FROM payments WHERE loan_id = ?`), loanID)

	return count, err
}

func (r *paymentRepository) ListDetails(ctx context.Context, filter domain.PaymentFilter) ([]*domain.PaymentDetail, error) {
	c := conn(ctx, r.db)

	var (
		where []string
		args  []interface{}
	)
	if filter.LoanID != nil {
		where = append(where, "p.loan_id = ?")
		args = append(args, *filter.LoanID)
	}
	if filter.BorrowerID != nil {
		where = append(where, "p.borrower_id = ?")
		args = append(args, *filter.BorrowerID)
	}
	if filter.AgentID != nil {
		where = append(where, "p.agent_id = ?")
		args = append(args, *filter.AgentID)
	}
	if filter.StartDate != nil {
		where = append(where, "p.payment_date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "p.payment_date <= ?")
		args = append(args, filter.EndDate.UTC())
	}

	query := paymentDetailQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.payment_date DESC, p.created_at DESC"

	payments := []*domain.PaymentDetail{}
	if err := sqlx.SelectContext(ctx, c, &payments, c.Rebind(query), args...); err != nil {
		return nil, err
	}

	return payments, nil
}

// JournalTotals adds amounts up in decimal rather than SQL SUM, which sqlite
// would evaluate in floating point over TEXT columns.
func (r *paymentRepository) JournalTotals(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := conn(ctx, r.db).QueryxContext(ctx, `SELECT loan_id, amount_paid FROM payments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var (
			loanID uuid.UUID
			amount decimal.Decimal
		)
		if err := rows.Scan(&loanID, &amount); err != nil {
			return nil, err
		}
		totals[loanID] = totals[loanID].Add(amount)
	}

	return totals, rows.Err()
}
