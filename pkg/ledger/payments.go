package ledger

import (
	"context"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// stampPaid sets the paid date to today for a paid record that has none.
func (l *Ledger) stampPaid(status models.PaymentStatus, paidDate **time.Time) {
	if status != models.PaymentStatusPaid {
		return
	}
	if *paidDate == nil {
		today := l.Today()
		*paidDate = &today
		return
	}
	d := calendar.Truncate(**paidDate)
	*paidDate = &d
}

func statusOf(status models.PaymentStatus) models.PaymentStatus {
	if status == "" {
		return models.PaymentStatusPending
	}
	return status
}

// SaveDeposit creates or updates a deposit and applies the balance movement of
// the transition in the same database transaction. A custom deposit that
// becomes paid is recorded as a cash payment.
func (l *Ledger) SaveDeposit(ctx context.Context, d *models.Deposit) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		return l.saveDeposit(ctx, tx, d, models.PaymentMethodCash)
	})
}

func (l *Ledger) saveDeposit(ctx context.Context, tx store.Storage, d *models.Deposit, via models.PaymentMethod) error {
	d.PaymentStatus = statusOf(d.PaymentStatus)
	if !d.Date.IsZero() {
		d.Date = calendar.Truncate(d.Date)
		ym := calendar.Of(d.Date)
		d.Period = ym.Period()
		if d.Name == "" {
			d.Name = ym.Label()
		}
	}
	l.stampPaid(d.PaymentStatus, &d.PaidDate)
	if err := models.Validate(d); err != nil {
		return err
	}

	var old *models.Deposit
	if d.ID != 0 {
		prev, err := tx.GetDeposit(ctx, d.ID, true)
		if err != nil {
			return err
		}
		old = prev
		d.CreatedAt = prev.CreatedAt
	}

	if err := tx.SaveDeposit(ctx, d); err != nil {
		return err
	}
	if err := settle(ctx, tx, between(depositEffect(old), depositEffect(d))); err != nil {
		return err
	}

	var prevStatus *models.PaymentStatus
	if old != nil {
		prevStatus = &old.PaymentStatus
	}
	if via != models.PaymentMethodCash || !d.IsCustom || !becamePaid(prevStatus, d.PaymentStatus) {
		return nil
	}
	user, err := tx.GetUser(ctx, d.UserID)
	if err != nil {
		return err
	}
	return l.recordCash(ctx, tx, models.DepositRef(d.ID), payer{user.ID, user.Name}, d.Amount, d.PaidDate)
}

// DeleteDeposit removes a deposit and its penalties, reversing a paid amount.
func (l *Ledger) DeleteDeposit(ctx context.Context, id uint) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		old, err := tx.GetDeposit(ctx, id, true)
		if err != nil {
			return err
		}
		if err := settle(ctx, tx, between(depositEffect(old), decimal.Zero)); err != nil {
			return err
		}
		if err := tx.DeletePenaltiesFor(ctx, models.DepositRef(id)); err != nil {
			return err
		}
		return tx.DeleteDeposit(ctx, id)
	})
}

// interestMonth picks the month an interest payment belongs to: its due date,
// then its label, then its paid date, then today.
func (l *Ledger) interestMonth(p *models.InterestPayment) calendar.YearMonth {
	if p.DueDate != nil {
		return calendar.Of(*p.DueDate)
	}
	if ym, ok := calendar.ParseLabel(p.Name); ok {
		return ym
	}
	if p.PaidDate != nil {
		return calendar.Of(*p.PaidDate)
	}
	return calendar.Of(l.Today())
}

// SaveInterestPayment creates or updates an interest payment with the same
// balance and cash recording rules as deposits.
func (l *Ledger) SaveInterestPayment(ctx context.Context, p *models.InterestPayment) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		return l.saveInterestPayment(ctx, tx, p, models.PaymentMethodCash)
	})
}

func (l *Ledger) saveInterestPayment(ctx context.Context, tx store.Storage, p *models.InterestPayment, via models.PaymentMethod) error {
	p.PaymentStatus = statusOf(p.PaymentStatus)
	if p.DueDate != nil {
		due := calendar.Truncate(*p.DueDate)
		p.DueDate = &due
	}
	l.stampPaid(p.PaymentStatus, &p.PaidDate)
	ym := l.interestMonth(p)
	p.Period = ym.Period()
	if p.Name == "" {
		p.Name = ym.Label()
	}
	if err := models.Validate(p); err != nil {
		return err
	}

	loan, err := tx.GetLoan(ctx, p.LoanID, false)
	if err != nil {
		return err
	}

	var old *models.InterestPayment
	if p.ID != 0 {
		prev, err := tx.GetInterestPayment(ctx, p.ID, true)
		if err != nil {
			return err
		}
		old = prev
		p.CreatedAt = prev.CreatedAt
	}

	if err := tx.SaveInterestPayment(ctx, p); err != nil {
		return err
	}
	if err := settle(ctx, tx, between(interestEffect(old), interestEffect(p))); err != nil {
		return err
	}

	var prevStatus *models.PaymentStatus
	if old != nil {
		prevStatus = &old.PaymentStatus
	}
	if via != models.PaymentMethodCash || !p.IsCustom || !becamePaid(prevStatus, p.PaymentStatus) {
		return nil
	}
	return l.recordCash(ctx, tx, models.InterestRef(p.ID), payer{loan.UserID, loan.User.Name}, p.Amount, p.PaidDate)
}

// DeleteInterestPayment removes an interest payment and its penalties, reversing a paid amount.
func (l *Ledger) DeleteInterestPayment(ctx context.Context, id uint) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		return l.deleteInterestPayment(ctx, tx, id)
	})
}

func (l *Ledger) deleteInterestPayment(ctx context.Context, tx store.Storage, id uint) error {
	old, err := tx.GetInterestPayment(ctx, id, true)
	if err != nil {
		return err
	}
	if err := settle(ctx, tx, between(interestEffect(old), decimal.Zero)); err != nil {
		return err
	}
	if err := tx.DeletePenaltiesFor(ctx, models.InterestRef(id)); err != nil {
		return err
	}
	return tx.DeleteInterestPayment(ctx, id)
}

// SavePrincipalPayment creates or updates a principal repayment. A paid
// repayment that clears the remaining principal completes an active loan, and
// an edit that leaves principal outstanding reopens a completed one.
func (l *Ledger) SavePrincipalPayment(ctx context.Context, p *models.PrincipalPayment) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		return l.savePrincipalPayment(ctx, tx, p, models.PaymentMethodCash)
	})
}

func (l *Ledger) savePrincipalPayment(ctx context.Context, tx store.Storage, p *models.PrincipalPayment, via models.PaymentMethod) error {
	p.PaymentStatus = statusOf(p.PaymentStatus)
	l.stampPaid(p.PaymentStatus, &p.PaidDate)
	if err := models.Validate(p); err != nil {
		return err
	}

	loan, err := tx.GetLoan(ctx, p.LoanID, true)
	if err != nil {
		return err
	}

	var old *models.PrincipalPayment
	if p.ID != 0 {
		prev, err := tx.GetPrincipalPayment(ctx, p.ID, true)
		if err != nil {
			return err
		}
		old = prev
		p.CreatedAt = prev.CreatedAt
	}

	if err := tx.SavePrincipalPayment(ctx, p); err != nil {
		return err
	}
	if err := settle(ctx, tx, between(l.principalEffect(old), l.principalEffect(p))); err != nil {
		return err
	}

	var prevStatus *models.PaymentStatus
	if old != nil {
		prevStatus = &old.PaymentStatus
	}
	if via == models.PaymentMethodCash && p.IsCustom && becamePaid(prevStatus, p.PaymentStatus) {
		if err := l.recordCash(ctx, tx, models.PrincipalRef(p.ID), payer{loan.UserID, loan.User.Name}, p.Amount, p.PaidDate); err != nil {
			return err
		}
	}

	return l.syncCompletion(ctx, tx, loan)
}

// syncCompletion completes an active loan whose principal is repaid and reopens
// a completed loan that owes principal again.
func (l *Ledger) syncCompletion(ctx context.Context, tx store.Storage, loan *models.Loan) error {
	if loan.Status != models.LoanStatusActive && loan.Status != models.LoanStatusCompleted {
		return nil
	}
	remaining, err := remainingPrincipal(ctx, tx, loan)
	if err != nil {
		return err
	}
	switch {
	case loan.Status == models.LoanStatusActive && !remaining.IsPositive():
		loan.Status = models.LoanStatusCompleted
	case loan.Status == models.LoanStatusCompleted && remaining.IsPositive():
		loan.Status = models.LoanStatusActive
		loan.CompletedDate = nil
	default:
		return nil
	}
	return l.saveLoan(ctx, tx, loan, loan.ActionBy)
}

// DeletePrincipalPayment removes a principal repayment, reversing it under the
// cashflow policy. A completed loan that owes principal again is reopened.
func (l *Ledger) DeletePrincipalPayment(ctx context.Context, id uint) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		old, err := tx.GetPrincipalPayment(ctx, id, true)
		if err != nil {
			return err
		}
		if err := l.deletePrincipalPayment(ctx, tx, id); err != nil {
			return err
		}
		loan, err := tx.GetLoan(ctx, old.LoanID, true)
		if err != nil {
			return err
		}
		return l.syncCompletion(ctx, tx, loan)
	})
}

func (l *Ledger) deletePrincipalPayment(ctx context.Context, tx store.Storage, id uint) error {
	old, err := tx.GetPrincipalPayment(ctx, id, true)
	if err != nil {
		return err
	}
	if err := settle(ctx, tx, between(l.principalEffect(old), decimal.Zero)); err != nil {
		return err
	}
	return tx.DeletePrincipalPayment(ctx, id)
}
