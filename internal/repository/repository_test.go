package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(config.DatabaseConfig{Driver: DriverSQLite, URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seedBorrower(t *testing.T, repo BorrowerRepository, name, phone string, createdAt time.Time) *domain.Borrower {
	t.Helper()
	b := &domain.Borrower{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		IsActive:  true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func seedUser(t *testing.T, repo UserRepository, name, phone, role string, createdAt time.Time) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Phone:        phone,
		PasswordHash: "hash",
		Role:         role,
		IsActive:     true,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func seedLoan(t *testing.T, repo LoanRepository, borrowerID uuid.UUID, agentID *uuid.UUID, principal string, createdAt time.Time) *domain.Loan {
	t.Helper()
	params := domain.NewLoanParams{
		BorrowerID:       borrowerID,
		PrincipalAmount:  decimal.RequireFromString(principal),
		InstallmentCount: 100,
		Terms:            domain.RateBased{InterestRatePercent: decimal.NewFromInt(10)},
	}
	if agentID != nil {
		params.AssignedAgentID = uuid.NullUUID{UUID: *agentID, Valid: true}
	}
	loan, err := domain.NewLoan(params, createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), loan))
	return loan
}

func TestBorrowerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBorrowerRepository(newTestDB(t))
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := seedBorrower(t, repo, "Asha", "9876543210", base)
	second := seedBorrower(t, repo, "Ravi", "9123456789", base.Add(time.Hour))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha", got.Name)
		assert.True(t, got.IsActive)
		assert.WithinDuration(t, base, got.CreatedAt, time.Second)
	})

	t.Run("get by phone", func(t *testing.T) {
		got, err := repo.GetByPhone(ctx, "9123456789")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("missing borrower", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.GetByPhone(ctx, "0000")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("duplicate phone", func(t *testing.T) {
		err := repo.Create(ctx, &domain.Borrower{
			ID: uuid.New(), Name: "Other", Phone: "9876543210", IsActive: true,
			CreatedAt: base, UpdatedAt: base,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, apperrors.ErrCodePhoneTaken, apperrors.Code(err))
	})

	t.Run("list newest first", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("update", func(t *testing.T) {
		first.Name = "Asha K"
		first.IsActive = false
		first.UpdatedAt = base.Add(2 * time.Hour)
		require.NoError(t, repo.Update(ctx, first))

		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha K", got.Name)
		assert.False(t, got.IsActive)
	})

	t.Run("update to taken phone", func(t *testing.T) {
		second.Phone = "9876543210"
		err := repo.Update(ctx, second)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("update missing", func(t *testing.T) {
		err := repo.Update(ctx, &domain.Borrower{ID: uuid.New(), Name: "x", Phone: "1"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	admin := seedUser(t, repo, "Admin", "9000000001", domain.RoleAdmin, base)
	agent := seedUser(t, repo, "Agent", "9000000002", domain.RoleAgent, base.Add(time.Minute))

	got, err := repo.GetByPhone(ctx, "9000000001")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, agent.ID, all[0].ID)

	agents, err := repo.List(ctx, domain.RoleAgent)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, agent.ID, agents[0].ID)

	agent.Email = "agent@example.com"
	agent.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, agent))
	got, err = repo.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", got.Email)

	dup := &domain.User{ID: uuid.New(), Name: "Dup", Phone: "9000000002", PasswordHash: "x", Role: domain.RoleAgent, CreatedAt: base, UpdatedAt: base}
	assert.ErrorIs(t, repo.Create(ctx, dup), apperrors.ErrConflict)

	require.NoError(t, repo.Delete(ctx, agent.ID))
	_, err = repo.GetByID(ctx, agent.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, agent.ID), apperrors.ErrNotFound)
}

func TestLoanRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	borrowers := NewBorrowerRepository(db)
	users := NewUserRepository(db)
	repo := NewLoanRepository(db)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	borrower := seedBorrower(t, borrowers, "Asha", "9876543210", base)
	agent := seedUser(t, users, "Agent", "9000000002", domain.RoleAgent, base)

	older := seedLoan(t, repo, borrower.ID, &agent.ID, "10000", base)
	newer := seedLoan(t, repo, borrower.ID, nil, "2500.50", base.Add(time.Hour))

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanModeRateBased, got.Mode)
		assert.True(t, got.PrincipalAmount.Equal(decimal.NewFromInt(10000)))
		assert.True(t, got.InitialInterestDeduction.Equal(decimal.NewFromInt(1000)))
		assert.True(t, got.AmountPaidToBorrower.Equal(decimal.NewFromInt(9000)))
		assert.True(t, got.InterestRate.Valid)
		assert.True(t, got.AssignedAgentID.Valid)
		assert.Equal(t, agent.ID, got.AssignedAgentID.UUID)
		assert.Equal(t, domain.LoanStatusActive, got.Status)

		got, err = repo.GetByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.True(t, got.PrincipalAmount.Equal(decimal.RequireFromString("2500.50")))
		assert.False(t, got.AssignedAgentID.Valid)
	})

	t.Run("list and list by agent", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)

		mine, err := repo.ListByAgent(ctx, agent.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, older.ID, mine[0].ID)
	})

	t.Run("update balance inside transaction", func(t *testing.T) {
		tm := NewTxManager(db)
		err := tm.WithinTx(ctx, func(ctx context.Context) error {
			loan, err := repo.GetByIDForUpdate(ctx, older.ID)
			if err != nil {
				return err
			}
			if err := loan.ApplyPayment(decimal.RequireFromString("1234.56"), false); err != nil {
				return err
			}
			return repo.UpdateBalance(ctx, loan)
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.True(t, got.AmountPaidByBorrower.Equal(decimal.RequireFromString("1234.56")))
		assert.True(t, got.RemainingAmount.Equal(decimal.RequireFromString("8765.44")))
	})

	t.Run("snapshot reads run in one transaction", func(t *testing.T) {
		tm := NewTxManager(db)
		err := tm.WithinSnapshot(ctx, func(ctx context.Context) error {
			_, inTx := ctx.Value(txKey{}).(*sqlx.Tx)
			assert.True(t, inTx)

			all, err := repo.List(ctx)
			if err != nil {
				return err
			}
			assert.Len(t, all, 2)

			return tm.WithinTx(ctx, func(inner context.Context) error {
				assert.Same(t, ctx.Value(txKey{}), inner.Value(txKey{}))
				_, err := repo.GetByID(inner, older.ID)
				return err
			})
		})
		require.NoError(t, err)
	})

	t.Run("rolled back transaction leaves no trace", func(t *testing.T) {
		tm := NewTxManager(db)
		boom := errors.New("boom")
		err := tm.WithinTx(ctx, func(ctx context.Context) error {
			loan, err := repo.GetByIDForUpdate(ctx, newer.ID)
			if err != nil {
				return err
			}
			loan.Status = domain.LoanStatusOverdue
			if err := repo.UpdateStatus(ctx, loan); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := repo.GetByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusActive, got.Status)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, newer.ID))
		_, err := repo.GetByID(ctx, newer.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, newer.ID), apperrors.ErrNotFound)
	})
}

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	borrowers := NewBorrowerRepository(db)
	users := NewUserRepository(db)
	loans := NewLoanRepository(db)
	repo := NewPaymentRepository(db)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	asha := seedBorrower(t, borrowers, "Asha", "9876543210", base)
	ravi := seedBorrower(t, borrowers, "Ravi", "9123456789", base)
	agent := seedUser(t, users, "Agent", "9000000002", domain.RoleAgent, base)
	loanA := seedLoan(t, loans, asha.ID, &agent.ID, "10000", base)
	loanB := seedLoan(t, loans, ravi.ID, nil, "5000", base)

	record := func(loan *domain.Loan, amount string, paidAt time.Time) *domain.Payment {
		p := &domain.Payment{
			ID:          uuid.New(),
			LoanID:      loan.ID,
			BorrowerID:  loan.BorrowerID,
			AgentID:     agent.ID,
			AmountPaid:  decimal.RequireFromString(amount),
			PaymentDate: paidAt,
			CreatedAt:   paidAt,
		}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}

	p1 := record(loanA, "100", base.Add(24*time.Hour))
	p2 := record(loanA, "250.25", base.Add(48*time.Hour))
	p3 := record(loanB, "0.10", base.Add(48*time.Hour+time.Minute))
	record(loanB, "0.20", base.Add(72*time.Hour))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, p2.ID)
		require.NoError(t, err)
		assert.True(t, got.AmountPaid.Equal(decimal.RequireFromString("250.25")))
		assert.Equal(t, loanA.ID, got.LoanID)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("details are joined and newest first", func(t *testing.T) {
		details, err := repo.ListDetails(ctx, domain.PaymentFilter{LoanID: &loanA.ID})
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, p2.ID, details[0].ID)
		assert.Equal(t, p1.ID, details[1].ID)

		d := details[0]
		require.NotNil(t, d.BorrowerName)
		assert.Equal(t, "Asha", *d.BorrowerName)
		require.NotNil(t, d.AgentName)
		assert.Equal(t, "Agent", *d.AgentName)
		assert.True(t, d.LoanPrincipalAmount.Decimal.Equal(decimal.NewFromInt(10000)))
		require.NotNil(t, d.LoanStatus)
		assert.Equal(t, domain.LoanStatusActive, *d.LoanStatus)
	})

	t.Run("date window is inclusive", func(t *testing.T) {
		start := base.Add(48 * time.Hour)
		end := base.Add(48*time.Hour + time.Minute)
		details, err := repo.ListDetails(ctx, domain.PaymentFilter{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, p3.ID, details[0].ID)
		assert.Equal(t, p2.ID, details[1].ID)
	})

	t.Run("filter by borrower", func(t *testing.T) {
		details, err := repo.ListDetails(ctx, domain.PaymentFilter{BorrowerID: &ravi.ID})
		require.NoError(t, err)
		assert.Len(t, details, 2)
	})

	t.Run("journal totals are exact", func(t *testing.T) {
		totals, err := repo.JournalTotals(ctx)
		require.NoError(t, err)
		assert.True(t, totals[loanA.ID].Equal(decimal.RequireFromString("350.25")))
		assert.True(t, totals[loanB.ID].Equal(decimal.RequireFromString("0.3")), totals[loanB.ID].String())
	})

	t.Run("count and delete", func(t *testing.T) {
		count, err := repo.CountByLoanID(ctx, loanA.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		require.NoError(t, repo.Delete(ctx, p1.ID))
		assert.ErrorIs(t, repo.Delete(ctx, p1.ID), apperrors.ErrNotFound)

		n, err := repo.DeleteByLoanID(ctx, loanB.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		count, err = repo.CountByLoanID(ctx, loanB.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
