package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
)

// ReminderStats counts reminders for one kind of obligation.
type ReminderStats struct {
	Total   int
	Sent    int
	Skipped int // no device token
	Failed  int
}

type ReminderReport struct {
	DryRun    bool
	Deposits  ReminderStats
	Interest  ReminderStats
	Penalties ReminderStats
	Lines     []string
	Errors    []string
}

type ReminderOptions struct {
	DryRun bool
}

type reminder struct {
	user  *models.User
	title string
	body  string
	what  string
}

// SendReminders notifies the owner of every pending deposit, interest payment
// and penalty. In dry-run mode nothing is sent or recorded and would-be sends
// are counted as sent.
func (s *Service) SendReminders(ctx context.Context, opts ReminderOptions) *ReminderReport {
	report := &ReminderReport{DryRun: opts.DryRun}

	deposits, err := s.storage.ListDeposits(ctx, store.ObligationFilter{Status: models.PaymentStatusPending})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("deposits: %v", err))
	}
	for i := range deposits {
		d := &deposits[i]
		s.remind(ctx, opts, report, &report.Deposits, reminder{
			user:  &d.User,
			title: "Pending Membership Deposit",
			body: fmt.Sprintf("You have a pending membership deposit of Rs. %s for %s - %s (Due: %s)",
				d.Amount.StringFixed(2), d.Membership.Name, d.Name, d.Date.Format("2006-01-02")),
			what: fmt.Sprintf("Deposit #%d %s", d.ID, d.Name),
		})
	}

	payments, err := s.storage.ListInterestPayments(ctx, store.ObligationFilter{Status: models.PaymentStatusPending})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("interest payments: %v", err))
	}
	for i := range payments {
		p := &payments[i]
		due := "N/A"
		if p.DueDate != nil {
			due = p.DueDate.Format("2006-01-02")
		}
		s.remind(ctx, opts, report, &report.Interest, reminder{
			user:  &p.Loan.User,
			title: "Pending Loan Interest Payment",
			body: fmt.Sprintf("You have a pending loan interest payment of Rs. %s for Loan #%d - %s (Due: %s)",
				p.Amount.StringFixed(2), p.LoanID, p.Name, due),
			what: fmt.Sprintf("Interest #%d %s", p.ID, p.Name),
		})
	}

	penalties, err := s.storage.ListPendingPenalties(ctx, 0)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("penalties: %v", err))
	}
	for i := range penalties {
		p := &penalties[i]
		s.remind(ctx, opts, report, &report.Penalties, reminder{
			user:  &p.User,
			title: "Pending Penalty Payment",
			body: fmt.Sprintf("You have a pending penalty of Rs. %s for %s (Month %d). Total penalty due: Rs. %s (Due: %s)",
				p.PenaltyAmount.StringFixed(2), p.PenaltyType, p.MonthNumber, p.TotalPenalty.StringFixed(2), p.DueDate.Format("2006-01-02")),
			what: fmt.Sprintf("Penalty #%d month %d", p.ID, p.MonthNumber),
		})
	}

	return report
}

func (s *Service) remind(ctx context.Context, opts ReminderOptions, report *ReminderReport, stats *ReminderStats, r reminder) {
	stats.Total++
	if r.user.FCMToken == "" {
		stats.Skipped++
		report.Lines = append(report.Lines, fmt.Sprintf("skipped: %s - no device token - %s", r.user.Name, r.what))
		return
	}
	if opts.DryRun {
		stats.Sent++
		report.Lines = append(report.Lines, fmt.Sprintf("would send: %s - %s - %s", r.user.Name, r.title, r.body))
		return
	}

	err := s.notify(ctx, r.user, r.title, r.body)
	switch {
	case err == nil:
		stats.Sent++
		report.Lines = append(report.Lines, fmt.Sprintf("sent: %s - %s", r.user.Name, r.what))
	case errors.Is(err, ErrNoToken):
		stats.Skipped++
	default:
		stats.Failed++
		report.Lines = append(report.Lines, fmt.Sprintf("failed: %s - %s: %v", r.user.Name, r.what, err))
	}
}
