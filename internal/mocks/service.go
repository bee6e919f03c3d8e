package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/lending-ledger/internal/domain"
)

type MockBorrowerService struct {
	mock.Mock
}

func (m *MockBorrowerService) Create(ctx context.Context, req *domain.CreateBorrowerRequest) (*domain.Borrower, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) Get(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) FindByPhone(ctx context.Context, phone string) (*domain.Borrower, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) List(ctx context.Context) ([]*domain.Borrower, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateBorrowerRequest) (*domain.Borrower, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockBorrowerService) ResolveOrCreate(ctx context.Context, id *uuid.UUID, req *domain.CreateBorrowerRequest) (*domain.Borrower, bool, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Borrower), args.Bool(1), args.Error(2)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req *domain.RegisterUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResponse), args.Error(1)
}

func (m *MockUserService) ValidateSession(ctx context.Context, token string) (*domain.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Claims), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserService) ListAgents(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserService) AgentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLedgerService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ListLoansByAgent(ctx context.Context, agentID uuid.UUID) ([]*domain.Loan, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Loan, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLedgerService) RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) PayLoan(ctx context.Context, loanID, agentID uuid.UUID, req *domain.PayLoanRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, loanID, agentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) DeletePayment(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ListPayments(ctx context.Context) ([]*domain.PaymentDetail, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentDetail), args.Error(1)
}

func (m *MockLedgerService) ListLoanPayments(ctx context.Context, loanID uuid.UUID) (*domain.LoanPaymentsResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanPaymentsResponse), args.Error(1)
}

func (m *MockLedgerService) ListBorrowerPayments(ctx context.Context, borrowerID uuid.UUID) ([]*domain.PaymentDetail, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentDetail), args.Error(1)
}

func (m *MockLedgerService) ListPaymentsForDay(ctx context.Context, offsetDays int) ([]*domain.PaymentDetail, error) {
	args := m.Called(ctx, offsetDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentDetail), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) PaymentReport(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentReport), args.Error(1)
}

func (m *MockReportService) DailySummary(ctx context.Context, day time.Time) (*domain.DailySummary, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DailySummary), args.Error(1)
}

func (m *MockReportService) Reconcile(ctx context.Context) (*domain.ReconciliationReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationReport), args.Error(1)
}
