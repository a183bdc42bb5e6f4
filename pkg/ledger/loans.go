package ledger

import (
	"context"
	"fmt"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TotalPayable is principal plus simple interest for the whole timeline.
func TotalPayable(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Add(principal.Mul(rate).Div(hundred)).Round(2)
}

// CreateLoan stores a new loan application. A zero rate and timeline take the
// defaults from settings; the total payable is fixed here and never recomputed.
func (l *Ledger) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if loan.ID != 0 {
		return models.NewValidationError("id", "must be empty for a new loan")
	}
	settings, err := l.storage.GetSettings(ctx)
	if err != nil {
		return err
	}
	if loan.InterestRate.IsZero() {
		loan.InterestRate = settings.DefaultInterestRate
	}
	if loan.TimelineMonths == 0 {
		loan.TimelineMonths = settings.DefaultTimelineMonths
	}
	if loan.Status == "" {
		loan.Status = models.LoanStatusPending
	}
	if loan.AppliedDate.IsZero() {
		loan.AppliedDate = l.Today()
	}
	loan.TotalPayable = TotalPayable(loan.PrincipalAmount, loan.InterestRate)

	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		if _, err := tx.GetUser(ctx, loan.UserID); err != nil {
			return err
		}
		return l.saveLoan(ctx, tx, loan, loan.ActionBy)
	})
}

// UpdateLoan saves edits to an existing loan. The stored total payable is kept.
func (l *Ledger) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		prev, err := tx.GetLoan(ctx, loan.ID, true)
		if err != nil {
			return err
		}
		loan.TotalPayable = prev.TotalPayable
		return l.saveLoan(ctx, tx, loan, loan.ActionBy)
	})
}

// SetLoanStatus moves a loan to status, stamping the matching date and the actor.
func (l *Ledger) SetLoanStatus(ctx context.Context, id uint, status models.LoanStatus, actor uint) (*models.Loan, error) {
	var loan *models.Loan
	err := l.storage.Transaction(ctx, func(tx store.Storage) error {
		var err error
		loan, err = tx.GetLoan(ctx, id, true)
		if err != nil {
			return err
		}
		loan.Status = status
		return l.saveLoan(ctx, tx, loan, &actor)
	})
	return loan, err
}

// ApproveLoan approves a pending loan.
func (l *Ledger) ApproveLoan(ctx context.Context, id uint, actor uint) (*models.Loan, error) {
	return l.decide(ctx, id, models.LoanStatusApproved, actor)
}

// RejectLoan rejects a pending loan.
func (l *Ledger) RejectLoan(ctx context.Context, id uint, actor uint) (*models.Loan, error) {
	return l.decide(ctx, id, models.LoanStatusRejected, actor)
}

func (l *Ledger) decide(ctx context.Context, id uint, status models.LoanStatus, actor uint) (*models.Loan, error) {
	var loan *models.Loan
	err := l.storage.Transaction(ctx, func(tx store.Storage) error {
		var err error
		loan, err = tx.GetLoan(ctx, id, true)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return fmt.Errorf("loan %d is %s: %w", id, loan.Status, models.ErrInvalidStatus)
		}
		loan.Status = status
		return l.saveLoan(ctx, tx, loan, &actor)
	})
	return loan, err
}

// saveLoan persists loan, stamps lifecycle dates on a status change and applies
// the balance movement the loan policy assigns to the transition.
func (l *Ledger) saveLoan(ctx context.Context, tx store.Storage, loan *models.Loan, actor *uint) error {
	if err := models.Validate(loan); err != nil {
		return err
	}

	var old *models.Loan
	if loan.ID != 0 {
		prev, err := tx.GetLoan(ctx, loan.ID, true)
		if err != nil {
			return err
		}
		old = prev
		loan.CreatedAt = prev.CreatedAt
	}

	if old == nil || old.Status != loan.Status {
		today := l.Today()
		switch loan.Status {
		case models.LoanStatusApproved:
			loan.ApprovedDate = &today
		case models.LoanStatusActive:
			if loan.DisbursedDate == nil {
				loan.DisbursedDate = &today
			}
		case models.LoanStatusCompleted:
			loan.CompletedDate = &today
		}
		if actor != nil {
			loan.ActionBy = actor
		}
	}

	if err := tx.SaveLoan(ctx, loan); err != nil {
		return err
	}
	return settle(ctx, tx, between(l.loanEffect(old), l.loanEffect(loan)))
}

// DeleteLoan removes a loan together with its interest and principal payments,
// each through its own hook so paid amounts are reversed.
func (l *Ledger) DeleteLoan(ctx context.Context, id uint) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		loan, err := tx.GetLoan(ctx, id, true)
		if err != nil {
			return err
		}

		interest, err := tx.ListInterestPayments(ctx, store.ObligationFilter{LoanID: id})
		if err != nil {
			return err
		}
		for _, p := range interest {
			if err := l.deleteInterestPayment(ctx, tx, p.ID); err != nil {
				return err
			}
		}
		principal, err := tx.ListPrincipalPayments(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range principal {
			if err := l.deletePrincipalPayment(ctx, tx, p.ID); err != nil {
				return err
			}
		}

		if err := settle(ctx, tx, between(l.loanEffect(loan), decimal.Zero)); err != nil {
			return err
		}
		return tx.DeleteLoan(ctx, id)
	})
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	return l.storage.GetLoan(ctx, id, false)
}

// RemainingPrincipal is the principal minus every paid principal payment.
func (l *Ledger) RemainingPrincipal(ctx context.Context, loanID uint) (decimal.Decimal, error) {
	loan, err := l.storage.GetLoan(ctx, loanID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return remainingPrincipal(ctx, l.storage, loan)
}

func remainingPrincipal(ctx context.Context, s store.Storage, loan *models.Loan) (decimal.Decimal, error) {
	payments, err := s.ListPrincipalPayments(ctx, loan.ID)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := loan.PrincipalAmount
	for _, p := range payments {
		if p.PaymentStatus == models.PaymentStatusPaid {
			remaining = remaining.Sub(p.Amount)
		}
	}
	return remaining, nil
}
