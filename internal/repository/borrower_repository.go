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

const borrowerColumns = `id, name, phone, is_active, created_at, updated_at`

type borrowerRepository struct {
	db *sqlx.DB
}

func NewBorrowerRepository(db *sqlx.DB) BorrowerRepository {
	return &borrowerRepository{db: db}
}

func (r *borrowerRepository) Create(ctx context.Context, borrower *domain.Borrower) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		INSERT INTO borrowers (id, name, phone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := c.ExecContext(ctx, query,
		borrower.ID,
		borrower.Name,
		borrower.Phone,
		borrower.IsActive,
		borrower.CreatedAt.UTC(),
		borrower.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperrors.WrapPhoneTaken(borrower.Phone)
	}

	return err
}

func (r *borrowerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + borrowerColumns + ` FROM borrowers WHERE id = ?`)

	var borrower domain.Borrower
	if err := sqlx.GetContext(ctx, c, &borrower, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFound("Borrower", id.String())
		}
		return nil, err
	}

	return &borrower, nil
}

func (r *borrowerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Borrower, error) {
	c := conn(ctx, r.db)
	query := c.Rebind(`SELECT ` + borrowerColumns + ` FROM borrowers WHERE phone = ?`)

	var borrower domain.Borrower
	if err := sqlx.GetContext(ctx, c, &borrower, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapNotFoundBy("Borrower", "phone", phone)
		}
		return nil, err
	}

	return &borrower, nil
}

func (r *borrowerRepository) List(ctx context.Context) ([]*domain.Borrower, error) {
	query := `SELECT ` + borrowerColumns + ` FROM borrowers ORDER BY created_at DESC`

	borrowers := []*domain.Borrower{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &borrowers, query); err != nil {
		return nil, err
	}

	return borrowers, nil
}

func (r *borrowerRepository) Update(ctx context.Context, borrower *domain.Borrower) error {
	c := conn(ctx, r.db)
	query := c.Rebind(`
		UPDATE borrowers
		SET name = ?, phone = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := c.ExecContext(ctx, query,
		borrower.Name,
		borrower.Phone,
		borrower.IsActive,
		borrower.UpdatedAt.UTC(),
		borrower.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.WrapPhoneTaken(borrower.Phone)
	}
	if err != nil {
		return err
	}

	return expectAffected(res, "Borrower", borrower.ID)
}

// expectAffected turns an UPDATE or DELETE that matched nothing into NotFound.
func expectAffected(res sql.Result, entity string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.WrapNotFound(entity, id.String())
	}
	return nil
}
