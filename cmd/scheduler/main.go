package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/repository"
	"github.com/segyhp/lending-ledger/internal/service"
)

const jobTimeout = 5 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())
	slog.Info("starting ledger scheduler")

	db, err := repository.Open(cfg.Database)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	reports := service.NewReportService(repository.NewTxManager(db), repository.NewLoanRepository(db), repository.NewPaymentRepository(db), cfg)

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.GetLocation()))

	// Schedule tasks
	if err := setupCronJobs(c, cfg, reports); err != nil {
		slog.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	slog.Info("scheduler started", "timezone", cfg.GetLocation().String())

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scheduler")
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, reports *service.ReportService) error {
	if _, err := c.AddFunc(cfg.Scheduler.ReconcileSpec, func() { reconcile(reports) }); err != nil {
		return err
	}

	if _, err := c.AddFunc(cfg.Scheduler.DailySummarySpec, func() {
		dailySummary(reports, time.Now().In(cfg.GetLocation()).AddDate(0, 0, -1))
	}); err != nil {
		return err
	}

	slog.Info("cron jobs scheduled",
		"reconcile", cfg.Scheduler.ReconcileSpec,
		"daily_summary", cfg.Scheduler.DailySummarySpec,
	)
	return nil
}

func reconcile(reports *service.ReportService) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := reports.Reconcile(ctx)
	if err != nil {
		slog.Error("reconciliation failed", "error", err)
		return
	}

	for _, d := range report.Discrepancies {
		slog.Warn("ledger discrepancy",
			"loan_id", d.LoanID,
			"amount_paid_by_borrower", d.AmountPaidByBorrower,
			"imported_paid_amount", d.ImportedPaidAmount,
			"journal_total", d.JournalTotal,
			"remaining_amount", d.RemainingAmount,
			"expected_remaining", d.ExpectedRemaining,
			"reason", d.Reason,
		)
	}
	slog.Info("reconciliation finished", "checked_loans", report.CheckedLoans, "discrepancies", len(report.Discrepancies))
}

func dailySummary(reports *service.ReportService, day time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	summary, err := reports.DailySummary(ctx, day)
	if err != nil {
		slog.Error("daily summary failed", "error", err)
		return
	}

	for _, a := range summary.Agents {
		slog.Info("agent collections",
			"date", summary.Date,
			"agent_id", a.AgentID,
			"payments", a.PaymentCount,
			"total", a.TotalAmountPaid,
		)
	}
	slog.Info("daily summary",
		"date", summary.Date,
		"timezone", summary.Timezone,
		"payments", summary.TotalPayments,
		"total", summary.TotalAmountPaid,
	)
}
