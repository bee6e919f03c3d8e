package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

// ReportService aggregates the journal. It never writes.
type ReportService struct {
	tx          repository.TxManager
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository
	config      *config.Config
	now         func() time.Time
}

func NewReportService(tx repository.TxManager, loanRepo repository.LoanRepository, paymentRepo repository.PaymentRepository, config *config.Config) *ReportService {
	return &ReportService{
		tx:          tx,
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		config:      config,
		now:         time.Now,
	}
}

// PaymentReport lists the matching payments with totals. Disbursed and
// principal totals count each matched loan once.
func (s *ReportService) PaymentReport(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentReport, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, apperrors.Validation("end_date must not be before start_date")
	}

	payments, err := s.PaymentRepo.ListDetails(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	report := &domain.PaymentReport{
		TotalPayments:             len(payments),
		TotalAmountPaid:           decimal.Zero,
		TotalAmountPaidToBorrower: decimal.Zero,
		TotalPrincipalAmount:      decimal.Zero,
		Payments:                  payments,
	}

	seen := make(map[uuid.UUID]bool)
	for _, p := range payments {
		report.TotalAmountPaid = report.TotalAmountPaid.Add(p.AmountPaid)

		if seen[p.LoanID] {
			continue
		}
		seen[p.LoanID] = true
		if p.LoanAmountPaidToBorrower.Valid {
			report.TotalAmountPaidToBorrower = report.TotalAmountPaidToBorrower.Add(p.LoanAmountPaidToBorrower.Decimal)
		}
		if p.LoanPrincipalAmount.Valid {
			report.TotalPrincipalAmount = report.TotalPrincipalAmount.Add(p.LoanPrincipalAmount.Decimal)
		}
	}

	return report, nil
}

// DailySummary totals the collections of the calendar day containing day,
// per agent, in the business timezone.
func (s *ReportService) DailySummary(ctx context.Context, day time.Time) (*domain.DailySummary, error) {
	loc := s.config.GetLocation()
	start, end := utils.DayWindow(day, loc, 0)

	payments, err := s.PaymentRepo.ListDetails(ctx, domain.PaymentFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	summary := &domain.DailySummary{
		Date:            start.Format("2006-01-02"),
		Timezone:        loc.String(),
		TotalPayments:   len(payments),
		TotalAmountPaid: decimal.Zero,
		Agents:          []*domain.AgentCollection{},
	}

	byAgent := make(map[uuid.UUID]*domain.AgentCollection)
	for _, p := range payments {
		summary.TotalAmountPaid = summary.TotalAmountPaid.Add(p.AmountPaid)

		c, ok := byAgent[p.AgentID]
		if !ok {
			c = &domain.AgentCollection{AgentID: p.AgentID, AgentName: p.AgentName, TotalAmountPaid: decimal.Zero}
			byAgent[p.AgentID] = c
			summary.Agents = append(summary.Agents, c)
		}
		c.PaymentCount++
		c.TotalAmountPaid = c.TotalAmountPaid.Add(p.AmountPaid)
	}

	sort.SliceStable(summary.Agents, func(i, j int) bool {
		return summary.Agents[i].TotalAmountPaid.GreaterThan(summary.Agents[j].TotalAmountPaid)
	})

	return summary, nil
}

// Reconcile checks every loan against its journal: the amount repaid must
// equal the imported amount plus recorded payments, and the remaining balance
// must follow from principal and repayments. Loans and journal are read from
// one snapshot so a payment landing mid-run is not reported as drift.
func (s *ReportService) Reconcile(ctx context.Context) (*domain.ReconciliationReport, error) {
	var (
		loans  []*domain.Loan
		totals map[uuid.UUID]decimal.Decimal
	)
	err := s.tx.WithinSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if loans, err = s.LoanRepo.List(ctx); err != nil {
			return apperrors.Wrap(err)
		}
		if totals, err = s.PaymentRepo.JournalTotals(ctx); err != nil {
			return apperrors.Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &domain.ReconciliationReport{
		CheckedLoans:  len(loans),
		Discrepancies: []*domain.LoanDiscrepancy{},
		CheckedAt:     s.now(),
	}

	for _, loan := range loans {
		journal := totals[loan.ID]
		delete(totals, loan.ID)

		var reasons []string
		if !loan.AmountPaidByBorrower.Equal(loan.ImportedPaidAmount.Add(journal)) {
			reasons = append(reasons, "amount paid by borrower does not match imported amount plus journal")
		}
		if !loan.RemainingAmount.Equal(loan.ExpectedRemaining()) {
			reasons = append(reasons, "remaining amount does not match principal minus amount paid")
		}
		if len(reasons) == 0 {
			continue
		}

		report.Discrepancies = append(report.Discrepancies, &domain.LoanDiscrepancy{
			LoanID:               loan.ID,
			AmountPaidByBorrower: loan.AmountPaidByBorrower,
			ImportedPaidAmount:   loan.ImportedPaidAmount,
			JournalTotal:         journal,
			RemainingAmount:      loan.RemainingAmount,
			ExpectedRemaining:    loan.ExpectedRemaining(),
			Reason:               strings.Join(reasons, "; "),
		})
	}

	// Whatever is left belongs to payments whose loan is gone.
	orphans := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		orphans = append(orphans, id)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].String() < orphans[j].String() })

	for _, id := range orphans {
		report.Discrepancies = append(report.Discrepancies, &domain.LoanDiscrepancy{
			LoanID:       id,
			JournalTotal: totals[id],
			Reason:       "payments reference a loan that no longer exists",
		})
	}

	return report, nil
}
