package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/cache"
	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/mocks"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

type ledgerMocks struct {
	loans     *mocks.MockLoanRepository
	payments  *mocks.MockPaymentRepository
	borrowers *mocks.MockBorrowerService
	agents    *mocks.MockUserService
	cache     *mocks.MockLoanCache
}

func newTestLedger(cfg *config.Config) (*LedgerService, *ledgerMocks) {
	m := &ledgerMocks{
		loans:     new(mocks.MockLoanRepository),
		payments:  new(mocks.MockPaymentRepository),
		borrowers: new(mocks.MockBorrowerService),
		agents:    new(mocks.MockUserService),
		cache:     new(mocks.MockLoanCache),
	}
	m.cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil).Maybe()

	s := NewLedgerService(mocks.TxManager{}, m.loans, m.payments, m.borrowers, m.agents, m.cache, cfg)
	s.now = func() time.Time { return fixedNow }
	return s, m
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func openLoan(t *testing.T, principal string) *domain.Loan {
	t.Helper()
	loan, err := domain.NewLoan(domain.NewLoanParams{
		BorrowerID:       uuid.New(),
		PrincipalAmount:  dec(principal),
		InstallmentCount: 100,
		Terms:            domain.DirectAmount{AmountPaidToBorrower: dec(principal)},
	}, fixedNow)
	require.NoError(t, err)
	return loan
}

func TestLedgerService_CreateLoan(t *testing.T) {
	borrower := &domain.Borrower{ID: uuid.New(), Name: "Asha", Phone: "9876543210", IsActive: true}
	agentID := uuid.New()
	newBorrower := &domain.CreateBorrowerRequest{Name: "Asha", Phone: "9876543210"}

	tests := []struct {
		name          string
		configure     func(*config.Config)
		request       *domain.CreateLoanRequest
		setupMocks    func(*ledgerMocks)
		expectedError error
		checkResponse func(*testing.T, *domain.CreateLoanResponse)
	}{
		{
			name: "rate based with inline borrower",
			request: &domain.CreateLoanRequest{
				NewBorrower:     newBorrower,
				AssignedAgentID: &agentID,
				PrincipalAmount: dec("10000"),
				InterestRate:    decPtr("10"),
			},
			setupMocks: func(m *ledgerMocks) {
				m.agents.On("AgentExists", mock.Anything, agentID).Return(true, nil)
				m.borrowers.On("ResolveOrCreate", mock.Anything, (*uuid.UUID)(nil), newBorrower).Return(borrower, true, nil)
				m.loans.On("Create", mock.Anything, mock.AnythingOfType("*domain.Loan")).Return(nil)
			},
			checkResponse: func(t *testing.T, resp *domain.CreateLoanResponse) {
				assert.True(t, resp.BorrowerCreated)
				loan := resp.Loan
				assert.Equal(t, borrower.ID, loan.BorrowerID)
				assert.Equal(t, agentID, loan.AssignedAgentID.UUID)
				assert.True(t, loan.InitialInterestDeduction.Equal(dec("1000")))
				assert.True(t, loan.AmountPaidToBorrower.Equal(dec("9000")))
				assert.Equal(t, 100, loan.InstallmentCount)
				assert.True(t, loan.InstallmentAmount.Equal(dec("100")))
				assert.True(t, loan.RemainingAmount.Equal(dec("10000")))
				assert.Equal(t, fixedNow, loan.StartDate)
			},
		},
		{
			name: "in progress import with explicit installments",
			request: &domain.CreateLoanRequest{
				BorrowerID:           &borrower.ID,
				PrincipalAmount:      dec("1200"),
				AmountPaidToBorrower: decPtr("1000"),
				AmountPaidByBorrower: decPtr("300"),
				InstallmentCount:     intPtr(12),
			},
			setupMocks: func(m *ledgerMocks) {
				m.borrowers.On("ResolveOrCreate", mock.Anything, &borrower.ID, (*domain.CreateBorrowerRequest)(nil)).Return(borrower, false, nil)
				m.loans.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			checkResponse: func(t *testing.T, resp *domain.CreateLoanResponse) {
				assert.False(t, resp.BorrowerCreated)
				assert.Equal(t, domain.LoanModeInProgress, resp.Loan.Mode)
				assert.True(t, resp.Loan.RemainingAmount.Equal(dec("900")))
				assert.True(t, resp.Loan.InstallmentAmount.Equal(dec("100")))
				assert.True(t, resp.Loan.ImportedPaidAmount.Equal(dec("300")))
			},
		},
		{
			name: "unknown agent",
			request: &domain.CreateLoanRequest{
				BorrowerID:           &borrower.ID,
				AssignedAgentID:      &agentID,
				PrincipalAmount:      dec("1000"),
				AmountPaidToBorrower: decPtr("900"),
			},
			setupMocks: func(m *ledgerMocks) {
				m.agents.On("AgentExists", mock.Anything, agentID).Return(false, nil)
			},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:      "agent required for mode",
			configure: func(c *config.Config) { c.Business.AgentRequiredModes = "direct_amount" },
			request: &domain.CreateLoanRequest{
				BorrowerID:           &borrower.ID,
				PrincipalAmount:      dec("1000"),
				AmountPaidToBorrower: decPtr("900"),
			},
			setupMocks:    func(m *ledgerMocks) {},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:      "rate above configured maximum",
			configure: func(c *config.Config) { c.Business.MaxInterestRate = "50" },
			request: &domain.CreateLoanRequest{
				BorrowerID:      &borrower.ID,
				PrincipalAmount: dec("1000"),
				InterestRate:    decPtr("60"),
			},
			setupMocks:    func(m *ledgerMocks) {},
			expectedError: apperrors.ErrValidation,
		},
		{
			name: "borrower phone conflict writes no loan",
			request: &domain.CreateLoanRequest{
				NewBorrower:     newBorrower,
				PrincipalAmount: dec("1000"),
				InterestRate:    decPtr("5"),
			},
			setupMocks: func(m *ledgerMocks) {
				m.borrowers.On("ResolveOrCreate", mock.Anything, (*uuid.UUID)(nil), newBorrower).
					Return(nil, false, apperrors.WrapPhoneTaken("9876543210"))
			},
			expectedError: apperrors.ErrConflict,
		},
		{
			name: "non-positive installment count",
			request: &domain.CreateLoanRequest{
				BorrowerID:       &borrower.ID,
				PrincipalAmount:  dec("1000"),
				InterestRate:     decPtr("5"),
				InstallmentCount: intPtr(0),
			},
			setupMocks: func(m *ledgerMocks) {
				m.borrowers.On("ResolveOrCreate", mock.Anything, &borrower.ID, (*domain.CreateBorrowerRequest)(nil)).Return(borrower, false, nil)
			},
			expectedError: apperrors.ErrValidation,
		},
		{
			name: "disbursement above principal",
			request: &domain.CreateLoanRequest{
				BorrowerID:           &borrower.ID,
				PrincipalAmount:      dec("1000"),
				AmountPaidToBorrower: decPtr("1000.01"),
			},
			setupMocks: func(m *ledgerMocks) {
				m.borrowers.On("ResolveOrCreate", mock.Anything, &borrower.ID, (*domain.CreateBorrowerRequest)(nil)).Return(borrower, false, nil)
			},
			expectedError: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.configure != nil {
				tt.configure(cfg)
			}
			s, m := newTestLedger(cfg)
			tt.setupMocks(m)

			resp, err := s.CreateLoan(context.Background(), tt.request)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, resp)
				m.loans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				tt.checkResponse(t, resp)
			}

			m.agents.AssertExpectations(t)
			m.borrowers.AssertExpectations(t)
			m.loans.AssertExpectations(t)
		})
	}
}

func intPtr(i int) *int {
	return &i
}

func TestLedgerService_GetLoan(t *testing.T) {
	ctx := context.Background()
	loan := openLoan(t, "1000")

	t.Run("cache hit", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		m.cache.On("Get", mock.Anything, loan.ID).Return(loan, nil)

		got, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan, got)
		m.loans.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("cache miss reads through", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		m.cache.On("Get", mock.Anything, loan.ID).Return(nil, cache.ErrMiss)
		m.loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
		m.cache.On("Set", mock.Anything, loan).Return(nil)

		got, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ID, got.ID)
		m.cache.AssertExpectations(t)
	})

	t.Run("cache outage falls back to database", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		m.cache.On("Get", mock.Anything, loan.ID).Return(nil, errors.New("connection refused"))
		m.loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
		m.cache.On("Set", mock.Anything, loan).Return(errors.New("connection refused"))

		got, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		id := uuid.New()
		m.cache.On("Get", mock.Anything, id).Return(nil, cache.ErrMiss)
		m.loans.On("GetByID", mock.Anything, id).Return(nil, apperrors.WrapNotFound("Loan", id.String()))

		_, err := s.GetLoan(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLedgerService_SetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("override is written even when it contradicts the balance", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		loan := openLoan(t, "1000")
		m.loans.On("GetByIDForUpdate", mock.Anything, loan.ID).Return(loan, nil)
		m.loans.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(l *domain.Loan) bool {
			return l.Status == domain.LoanStatusCompleted
		})).Return(nil)

		got, err := s.SetStatus(ctx, loan.ID, domain.LoanStatusCompleted)

		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusCompleted, got.Status)
		assert.True(t, got.RemainingAmount.Equal(dec("1000")))
		m.cache.AssertCalled(t, "Invalidate", mock.Anything, loan.ID)
	})

	t.Run("unknown status", func(t *testing.T) {
		s, m := newTestLedger(testConfig())

		_, err := s.SetStatus(ctx, uuid.New(), "defaulted")

		assert.ErrorIs(t, err, apperrors.ErrValidation)
		m.loans.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_DeleteLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("restrict refuses loans with payments", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		loan := openLoan(t, "1000")
		m.loans.On("GetByIDForUpdate", mock.Anything, loan.ID).Return(loan, nil)
		m.payments.On("CountByLoanID", mock.Anything, loan.ID).Return(2, nil)

		err := s.DeleteLoan(ctx, loan.ID)

		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, apperrors.ErrCodeLoanHasPayments, apperrors.Code(err))
		m.loans.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("restrict deletes loans without payments", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		loan := openLoan(t, "1000")
		m.loans.On("GetByIDForUpdate", mock.Anything, loan.ID).Return(loan, nil)
		m.payments.On("CountByLoanID", mock.Anything, loan.ID).Return(0, nil)
		m.loans.On("Delete", mock.Anything, loan.ID).Return(nil)

		require.NoError(t, s.DeleteLoan(ctx, loan.ID))
		m.loans.AssertExpectations(t)
	})

	t.Run("cascade removes payments first", func(t *testing.T) {
		cfg := testConfig()
		cfg.Business.LoanDeletePolicy = config.LoanDeleteCascade
		s, m := newTestLedger(cfg)
		loan := openLoan(t, "1000")
		m.loans.On("GetByIDForUpdate", mock.Anything, loan.ID).Return(loan, nil)
		m.payments.On("CountByLoanID", mock.Anything, loan.ID).Return(2, nil)
		m.payments.On("DeleteByLoanID", mock.Anything, loan.ID).Return(int64(2), nil)
		m.loans.On("Delete", mock.Anything, loan.ID).Return(nil)

		require.NoError(t, s.DeleteLoan(ctx, loan.ID))
		m.payments.AssertExpectations(t)
		m.loans.AssertExpectations(t)
	})

	t.Run("unknown loan", func(t *testing.T) {
		s, m := newTestLedger(testConfig())
		id := uuid.New()
		m.loans.On("GetByIDForUpdate", mock.Anything, id).Return(nil, apperrors.WrapNotFound("Loan", id.String()))

		assert.ErrorIs(t, s.DeleteLoan(ctx, id), apperrors.ErrNotFound)
	})
}
