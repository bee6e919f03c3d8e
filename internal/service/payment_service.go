package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

// RecordPayment appends a journal entry and applies it to the loan balance
// atomically.
func (s *LedgerService) RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest) (*domain.PaymentResponse, error) {
	if !req.AmountPaid.IsPositive() {
		return nil, apperrors.Validation("Payment amount must be greater than 0")
	}
	if req.AgentID == nil {
		return nil, apperrors.Validation("agent_id is required")
	}

	unlock := s.locks.Lock(req.LoanID)
	defer unlock()
	defer s.invalidate(ctx, req.LoanID)

	resp := &domain.PaymentResponse{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.LoanRepo.GetByIDForUpdate(ctx, req.LoanID)
		if err != nil {
			return apperrors.Wrap(err)
		}

		borrowerID := loan.BorrowerID
		if req.BorrowerID != nil {
			borrowerID = *req.BorrowerID
		}
		if _, err := s.borrowers.Get(ctx, borrowerID); err != nil {
			return err
		}
		if s.config.Business.EnforcePaymentBorrower && borrowerID != loan.BorrowerID {
			return apperrors.WrapBorrowerMismatch(loan.ID.String(), borrowerID.String())
		}

		exists, err := s.agents.AgentExists(ctx, *req.AgentID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.WrapNotFound("Agent", req.AgentID.String())
		}

		reject := s.config.Business.OverpaymentPolicy == config.OverpaymentReject
		if err := loan.ApplyPayment(req.AmountPaid, reject); err != nil {
			return err
		}

		now := s.now()
		payment := &domain.Payment{
			ID:          uuid.New(),
			LoanID:      loan.ID,
			BorrowerID:  borrowerID,
			AgentID:     *req.AgentID,
			AmountPaid:  req.AmountPaid,
			PaymentDate: now,
			CreatedAt:   now,
		}
		if req.PaymentDate != nil {
			payment.PaymentDate = *req.PaymentDate
		}

		if err := s.PaymentRepo.Create(ctx, payment); err != nil {
			return apperrors.Wrap(err)
		}

		loan.UpdatedAt = now
		if err := s.LoanRepo.UpdateBalance(ctx, loan); err != nil {
			return apperrors.Wrap(err)
		}

		resp.Payment = payment
		resp.UpdatedLoan = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payment recorded",
		"payment_id", resp.Payment.ID,
		"loan_id", resp.Payment.LoanID,
		"amount", resp.Payment.AmountPaid,
		"remaining_amount", resp.UpdatedLoan.RemainingAmount,
		"status", resp.UpdatedLoan.Status,
	)

	return resp, nil
}

// PayLoan records a payment against a loan on behalf of its own borrower.
func (s *LedgerService) PayLoan(ctx context.Context, loanID, agentID uuid.UUID, req *domain.PayLoanRequest) (*domain.PaymentResponse, error) {
	return s.RecordPayment(ctx, &domain.RecordPaymentRequest{
		LoanID:      loanID,
		AgentID:     &agentID,
		AmountPaid:  req.AmountPaid,
		PaymentDate: req.PaymentDate,
	})
}

// DeletePayment reverses a journal entry and removes it, atomically.
func (s *LedgerService) DeletePayment(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	payment, err := s.PaymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	unlock := s.locks.Lock(payment.LoanID)
	defer unlock()
	defer s.invalidate(ctx, payment.LoanID)

	var loan *domain.Loan
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Re-read under the lock; a concurrent delete may have won.
		payment, err := s.PaymentRepo.GetByID(ctx, id)
		if err != nil {
			return apperrors.Wrap(err)
		}

		loan, err = s.LoanRepo.GetByIDForUpdate(ctx, payment.LoanID)
		if err != nil {
			return apperrors.Wrap(err)
		}

		if err := loan.ReversePayment(payment.AmountPaid); err != nil {
			return err
		}

		loan.UpdatedAt = s.now()
		if err := s.LoanRepo.UpdateBalance(ctx, loan); err != nil {
			return apperrors.Wrap(err)
		}

		return apperrors.Wrap(s.PaymentRepo.Delete(ctx, id))
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payment reversed",
		"payment_id", id,
		"loan_id", loan.ID,
		"amount", payment.AmountPaid,
		"remaining_amount", loan.RemainingAmount,
		"status", loan.Status,
	)

	return loan, nil
}

func (s *LedgerService) ListPayments(ctx context.Context) ([]*domain.PaymentDetail, error) {
	return s.listPayments(ctx, domain.PaymentFilter{})
}

// ListLoanPayments returns a loan together with its journal, newest first.
func (s *LedgerService) ListLoanPayments(ctx context.Context, loanID uuid.UUID) (*domain.LoanPaymentsResponse, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	payments, err := s.listPayments(ctx, domain.PaymentFilter{LoanID: &loanID})
	if err != nil {
		return nil, err
	}

	return &domain.LoanPaymentsResponse{Loan: loan, Payments: payments}, nil
}

func (s *LedgerService) ListBorrowerPayments(ctx context.Context, borrowerID uuid.UUID) ([]*domain.PaymentDetail, error) {
	if _, err := s.borrowers.Get(ctx, borrowerID); err != nil {
		return nil, err
	}
	return s.listPayments(ctx, domain.PaymentFilter{BorrowerID: &borrowerID})
}

// ListPaymentsForDay lists the payments of the calendar day offsetDays from
// today, in the business timezone: 0 is today, -1 yesterday.
func (s *LedgerService) ListPaymentsForDay(ctx context.Context, offsetDays int) ([]*domain.PaymentDetail, error) {
	start, end := utils.DayWindow(s.now(), s.config.GetLocation(), offsetDays)
	return s.listPayments(ctx, domain.PaymentFilter{StartDate: &start, EndDate: &end})
}

func (s *LedgerService) listPayments(ctx context.Context, filter domain.PaymentFilter) ([]*domain.PaymentDetail, error) {
	payments, err := s.PaymentRepo.ListDetails(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return payments, nil
}
