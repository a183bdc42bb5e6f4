// Package obligation materializes the monthly pending deposits and interest
// payments that members owe.
package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

type Options struct {
	DryRun bool
}

type Report struct {
	Today           time.Time
	DepositDueDay   int
	InterestDueDay  int
	DryRun          bool
	DepositsCreated int
	InterestCreated int
	Lines           []string
	Errors          []string
}

// Generator walks every membership assignment and running loan forward from its
// creation month and fills in the months that have no obligation yet.
type Generator struct {
	storage store.Storage
	now     func() time.Time
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(s store.Storage, opts ...Option) *Generator {
	g := &Generator{storage: s, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MonthlyInterest is principal × rate / 100 / 12, rounded to cents.
func MonthlyInterest(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Mul(rate).Div(hundred).Div(twelve).Round(2)
}

// Run creates the missing obligations. Rows are inserted one by one, so an
// interrupted run is completed by running it again.
func (g *Generator) Run(ctx context.Context, opts Options) (*Report, error) {
	settings, err := g.storage.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	report := &Report{
		Today:          calendar.Truncate(g.now().UTC()),
		DepositDueDay:  settings.DepositDueDay,
		InterestDueDay: settings.InterestDueDay,
		DryRun:         opts.DryRun,
	}

	g.deposits(ctx, opts, report)
	g.interest(ctx, opts, report)
	return report, nil
}

func (g *Generator) deposits(ctx context.Context, opts Options, report *Report) {
	assignments, err := g.storage.ListMembershipUsers(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list memberships: %v", err))
		return
	}

	for _, mu := range assignments {
		start := startOf(mu.CreatedAt, report.Today)
		for _, ym := range calendar.ObligationMonths(start, report.Today, report.DepositDueDay) {
			exists, err := g.storage.DepositExistsForMonth(ctx, mu.UserID, mu.MembershipID, ym)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("deposit %s for %s: %v", ym.Label(), mu.User.Name, err))
				continue
			}
			if exists {
				continue
			}

			line := fmt.Sprintf("pending deposit: %s - %s - %s", mu.User.Name, mu.Membership.Name, ym.Label())
			if !opts.DryRun {
				created, err := g.storage.InsertPendingDeposit(ctx, &models.Deposit{
					UserID:        mu.UserID,
					MembershipID:  mu.MembershipID,
					Amount:        mu.Membership.Amount,
					Date:          ym.Day(report.DepositDueDay),
					PaymentStatus: models.PaymentStatusPending,
					Name:          ym.Label(),
					Period:        ym.Period(),
				})
				if err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("deposit %s for %s: %v", ym.Label(), mu.User.Name, err))
					continue
				}
				if !created {
					continue
				}
			}
			report.DepositsCreated++
			report.Lines = append(report.Lines, line)
		}
	}
}

func (g *Generator) interest(ctx context.Context, opts Options, report *Report) {
	loans, err := g.storage.ListLoans(ctx, models.LoanStatusApproved, models.LoanStatusActive)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list loans: %v", err))
		return
	}

	for _, loan := range loans {
		amount := MonthlyInterest(loan.PrincipalAmount, loan.InterestRate)
		if !amount.IsPositive() {
			continue
		}

		start := startOf(loan.CreatedAt, report.Today)
		for _, ym := range calendar.ObligationMonths(start, report.Today, report.InterestDueDay) {
			exists, err := g.storage.InterestPaymentExistsForMonth(ctx, loan.ID, ym)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("interest %s for loan #%d: %v", ym.Label(), loan.ID, err))
				continue
			}
			if exists {
				continue
			}

			line := fmt.Sprintf("pending interest payment: %s - Loan #%d - %s - amount %s",
				loan.User.Name, loan.ID, ym.Label(), amount.StringFixed(2))
			if !opts.DryRun {
				due := ym.Day(report.InterestDueDay)
				created, err := g.storage.InsertPendingInterestPayment(ctx, &models.InterestPayment{
					LoanID:        loan.ID,
					Amount:        amount,
					PaymentStatus: models.PaymentStatusPending,
					DueDate:       &due,
					Name:          ym.Label(),
					Period:        ym.Period(),
				})
				if err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("interest %s for loan #%d: %v", ym.Label(), loan.ID, err))
					continue
				}
				if !created {
					continue
				}
			}
			report.InterestCreated++
			report.Lines = append(report.Lines, line)
		}
	}
}

func startOf(created, today time.Time) time.Time {
	if created.IsZero() {
		return today
	}
	return calendar.Truncate(created.UTC())
}
