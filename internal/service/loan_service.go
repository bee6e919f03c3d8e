package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/lending-ledger/internal/cache"
	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
)

// BorrowerResolver is the part of the borrower registry the ledger needs.
type BorrowerResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)
	ResolveOrCreate(ctx context.Context, id *uuid.UUID, req *domain.CreateBorrowerRequest) (*domain.Borrower, bool, error)
}

// AgentDirectory answers whether a staff member exists.
type AgentDirectory interface {
	AgentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// LedgerService owns loans and the payment journal. Every change to a loan's
// balance goes through a journal entry, inside one transaction and under a
// per-loan lock.
type LedgerService struct {
	tx          repository.TxManager
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository
	borrowers   BorrowerResolver
	agents      AgentDirectory
	cache       cache.LoanCache
	config      *config.Config
	locks       *keyedMutex
	now         func() time.Time
}

func NewLedgerService(
	tx repository.TxManager,
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	borrowers BorrowerResolver,
	agents AgentDirectory,
	loanCache cache.LoanCache,
	config *config.Config,
) *LedgerService {
	return &LedgerService{
		tx:          tx,
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		borrowers:   borrowers,
		agents:      agents,
		cache:       loanCache,
		config:      config,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// CreateLoan originates a loan in any mode. The borrower is resolved or
// created in the same transaction as the loan row.
func (s *LedgerService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	terms, err := req.Terms()
	if err != nil {
		return nil, err
	}

	if rb, ok := terms.(domain.RateBased); ok && rb.InterestRatePercent.GreaterThan(s.config.GetMaxInterestRate()) {
		return nil, apperrors.Validationf("Interest rate cannot exceed %s", s.config.GetMaxInterestRate())
	}

	installments := s.config.Business.DefaultInstallmentCount
	if req.InstallmentCount != nil {
		installments = *req.InstallmentCount
	}

	var agentID uuid.NullUUID
	if req.AssignedAgentID != nil {
		exists, err := s.agents.AgentExists(ctx, *req.AssignedAgentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.Validationf("Assigned agent %s does not exist", req.AssignedAgentID)
		}
		agentID = uuid.NullUUID{UUID: *req.AssignedAgentID, Valid: true}
	} else if s.config.GetAgentRequiredModes()[string(terms.Mode())] {
		return nil, apperrors.Validationf("assigned_agent_id is required for %s loans", terms.Mode())
	}

	var startDate time.Time
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	resp := &domain.CreateLoanResponse{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		borrower, created, err := s.borrowers.ResolveOrCreate(ctx, req.BorrowerID, req.NewBorrower)
		if err != nil {
			return err
		}

		loan, err := domain.NewLoan(domain.NewLoanParams{
			BorrowerID:       borrower.ID,
			AssignedAgentID:  agentID,
			PrincipalAmount:  req.PrincipalAmount,
			InstallmentCount: installments,
			StartDate:        startDate,
			Terms:            terms,
		}, s.now())
		if err != nil {
			return err
		}

		if err := s.LoanRepo.Create(ctx, loan); err != nil {
			return apperrors.Wrap(err)
		}

		resp.Loan = loan
		resp.BorrowerCreated = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("loan created",
		"loan_id", resp.Loan.ID,
		"mode", resp.Loan.Mode,
		"principal", resp.Loan.PrincipalAmount,
		"borrower_created", resp.BorrowerCreated,
	)

	return resp, nil
}

// GetLoan reads through the loan cache.
func (s *LedgerService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, err := s.cache.Get(ctx, id)
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("loan cache read failed", "loan_id", id, "error", apperrors.WrapCacheError(err))
	}

	// Mutations invalidate under the loan lock, so filling the cache under the
	// same lock cannot write back a balance read before a commit.
	unlock := s.locks.Lock(id)
	defer unlock()

	loan, err = s.LoanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	if err := s.cache.Set(ctx, loan); err != nil {
		slog.Warn("loan cache write failed", "loan_id", id, "error", apperrors.WrapCacheError(err))
	}

	return loan, nil
}

func (s *LedgerService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := s.LoanRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return loans, nil
}

func (s *LedgerService) ListLoansByAgent(ctx context.Context, agentID uuid.UUID) ([]*domain.Loan, error) {
	loans, err := s.LoanRepo.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return loans, nil
}

// SetStatus is the administrative override. It does not look at the balance;
// a status that contradicts it is written anyway and logged.
func (s *LedgerService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Loan, error) {
	if !domain.ValidLoanStatus(status) {
		return nil, apperrors.Validationf("Invalid loan status %q", status)
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	defer s.invalidate(ctx, id)

	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		loan, err = s.LoanRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperrors.Wrap(err)
		}

		loan.Status = status
		loan.UpdatedAt = s.now()
		return apperrors.Wrap(s.LoanRepo.UpdateStatus(ctx, loan))
	})
	if err != nil {
		return nil, err
	}

	if loan.StatusContradictsBalance() {
		slog.Warn("loan status contradicts balance",
			"loan_id", loan.ID,
			"status", loan.Status,
			"remaining_amount", loan.RemainingAmount,
		)
	}

	return loan, nil
}

// DeleteLoan hard-deletes a loan. With the restrict policy a loan that still
// has journal entries is refused; with cascade its payments go with it.
func (s *LedgerService) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	defer s.invalidate(ctx, id)

	var removed int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.LoanRepo.GetByIDForUpdate(ctx, id); err != nil {
			return apperrors.Wrap(err)
		}

		count, err := s.PaymentRepo.CountByLoanID(ctx, id)
		if err != nil {
			return apperrors.Wrap(err)
		}

		if count > 0 {
			if s.config.Business.LoanDeletePolicy != config.LoanDeleteCascade {
				return apperrors.WrapLoanHasPayments(id.String(), count)
			}
			if removed, err = s.PaymentRepo.DeleteByLoanID(ctx, id); err != nil {
				return apperrors.Wrap(err)
			}
		}

		return apperrors.Wrap(s.LoanRepo.Delete(ctx, id))
	})
	if err != nil {
		return err
	}

	slog.Info("loan deleted", "loan_id", id, "payments_removed", removed)
	return nil
}

func (s *LedgerService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		slog.Warn("loan cache invalidation failed", "loan_id", id, "error", apperrors.WrapCacheError(err))
	}
}
