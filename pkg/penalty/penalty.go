// Package penalty charges compounding penalties on overdue deposits and interest payments.
package penalty

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/ledger"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// FallbackBaseAmount is charged for the first overdue month when settings hold no base amount.
var FallbackBaseAmount = decimal.NewFromInt(1000)

var two = decimal.NewFromInt(2)

// Notifier is told about every penalty created.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, title, body string) error
}

type Options struct {
	DryRun bool
	UserID uint // zero scans every user
	Force  bool // replace pending penalties for months already charged
}

// Line describes one penalty created, or one that would be in a dry run.
type Line struct {
	Ref      models.PaymentRef
	UserName string
	Month    int
	Amount   decimal.Decimal
	DueDate  time.Time
	DryRun   bool
}

func (l Line) String() string {
	verb := "created penalty"
	if l.DryRun {
		verb = "[DRY RUN] would create penalty"
	}
	return fmt.Sprintf("%s: %s - %s - month %d - amount %s", verb, l.UserName, l.Ref, l.Month, l.Amount.StringFixed(2))
}

type KindStats struct {
	Processed int
	Created   int
	Total     decimal.Decimal
}

type Report struct {
	Today      time.Time
	BaseAmount decimal.Decimal
	GraceDays  int
	Deposits   KindStats
	Interest   KindStats
	Lines      []Line
	Errors     []string
}

// Engine runs the penalty accrual batch.
type Engine struct {
	storage  store.Storage
	notifier Notifier
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(s store.Storage, n Notifier, opts ...Option) *Engine {
	e := &Engine{storage: s, notifier: n, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type obligation struct {
	ref      models.PaymentRef
	userID   uint
	userName string
	due      time.Time
}

// PenaltyAmount is base × 2^(month−1).
func PenaltyAmount(base decimal.Decimal, month int) decimal.Decimal {
	return base.Mul(two.Pow(decimal.NewFromInt(int64(month - 1))))
}

// Run scans pending deposits and interest payments and creates one penalty per
// overdue month not yet charged. Every penalty commits on its own, so a rerun
// after an interruption only adds what is missing.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	report := &Report{
		Today:      calendar.Truncate(e.now().UTC()),
		BaseAmount: settings.DefaultPenaltyAmount,
		GraceDays:  settings.PenaltyGraceDays,
		Deposits:   KindStats{Total: decimal.Zero},
		Interest:   KindStats{Total: decimal.Zero},
	}
	if !report.BaseAmount.IsPositive() {
		report.BaseAmount = FallbackBaseAmount
	}

	filter := store.ObligationFilter{Status: models.PaymentStatusPending, UserID: opts.UserID}

	deposits, err := e.storage.ListDeposits(ctx, filter)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list deposits: %v", err))
	}
	for _, d := range deposits {
		e.process(ctx, opts, report, &report.Deposits, obligation{
			ref:      models.DepositRef(d.ID),
			userID:   d.UserID,
			userName: d.User.Name,
			due:      calendar.Truncate(d.Date),
		})
	}

	payments, err := e.storage.ListInterestPayments(ctx, filter)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list interest payments: %v", err))
	}
	for _, p := range payments {
		e.process(ctx, opts, report, &report.Interest, obligation{
			ref:      models.InterestRef(p.ID),
			userID:   p.Loan.UserID,
			userName: p.Loan.User.Name,
			due:      InterestDueDate(&p, settings.InterestDueDay),
		})
	}

	return report, nil
}

// InterestDueDate resolves when an interest payment fell due: its due date, its
// paid date, its "YYYY Mon" label at the configured day, or its creation date.
func InterestDueDate(p *models.InterestPayment, dueDay int) time.Time {
	switch {
	case p.DueDate != nil:
		return calendar.Truncate(*p.DueDate)
	case p.PaidDate != nil:
		return calendar.Truncate(*p.PaidDate)
	}
	if ym, ok := calendar.ParseLabel(p.Name); ok {
		return ym.Day(dueDay)
	}
	return calendar.Truncate(p.CreatedAt.UTC())
}

func (e *Engine) process(ctx context.Context, opts Options, report *Report, stats *KindStats, ob obligation) {
	if !ob.ref.Penalizable() {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: not penalizable", ob.ref))
		return
	}
	start := ob.due.AddDate(0, 0, report.GraceDays)
	if !report.Today.After(start) {
		return
	}
	stats.Processed++

	months := calendar.MonthsOverdue(start, report.Today)
	if months <= 0 {
		return
	}

	existing, err := e.storage.ListPenalties(ctx, ob.ref)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ob.ref, err))
		return
	}
	byMonth := make(map[int]models.Penalty, len(existing))
	for _, p := range existing {
		byMonth[p.MonthNumber] = p
	}

	for month := 1; month <= months; month++ {
		var prev *models.Penalty
		if p, ok := byMonth[month]; ok {
			if !opts.Force || p.PaymentStatus == models.PaymentStatusPaid {
				continue
			}
			prev = &p
		}

		line := Line{
			Ref:      ob.ref,
			UserName: ob.userName,
			Month:    month,
			Amount:   PenaltyAmount(report.BaseAmount, month),
			DueDate:  calendar.Of(calendar.AddMonths(start, month-1)).First(),
			DryRun:   opts.DryRun,
		}
		if !opts.DryRun {
			created, total, err := e.charge(ctx, ob, line, report.BaseAmount, prev)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s month %d: %v", ob.ref, month, err))
				continue
			}
			if !created {
				continue
			}
			e.notify(ctx, ob, line, total)
		}

		stats.Created++
		stats.Total = stats.Total.Add(line.Amount)
		report.Lines = append(report.Lines, line)
	}
}

// charge replaces prev, if any, with the penalty described by line and
// refreshes the totals of its siblings, in one transaction.
func (e *Engine) charge(ctx context.Context, ob obligation, line Line, base decimal.Decimal, prev *models.Penalty) (bool, decimal.Decimal, error) {
	var created bool
	var total decimal.Decimal
	err := e.storage.Transaction(ctx, func(tx store.Storage) error {
		if prev != nil {
			if err := tx.DeletePenalty(ctx, prev.ID); err != nil {
				return err
			}
		}
		p := &models.Penalty{
			UserID:          ob.userID,
			PenaltyType:     ob.ref.Type,
			RelatedObjectID: ob.ref.ID,
			BaseAmount:      base,
			MonthNumber:     line.Month,
			PenaltyAmount:   line.Amount,
			TotalPenalty:    line.Amount,
			PaymentStatus:   models.PaymentStatusPending,
			DueDate:         line.DueDate,
		}
		ok, err := tx.InsertPenalty(ctx, p)
		if err != nil || !ok {
			return err
		}
		created = true
		total, err = ledger.RefreshPenaltyTotals(ctx, tx, ob.ref)
		return err
	})
	if err != nil {
		return false, decimal.Zero, err
	}
	return created, total, nil
}

func (e *Engine) notify(ctx context.Context, ob obligation, line Line, total decimal.Decimal) {
	if e.notifier == nil {
		return
	}
	kind := "deposit"
	if ob.ref.Type == models.PaymentTypeInterest {
		kind = "interest payment"
	}
	body := fmt.Sprintf("Penalty of %s applied for overdue %s (Month %d). Total penalty: %s",
		line.Amount.StringFixed(2), kind, line.Month, total.StringFixed(2))
	if err := e.notifier.NotifyUser(ctx, ob.userID, "Penalty Applied", body); err != nil {
		log.Printf("[penalty] notification for user %d failed: %v", ob.userID, err)
	}
}
