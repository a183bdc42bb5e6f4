package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// RefreshPenaltyTotals writes the sum of pending penalty amounts for ref onto
// every penalty for ref and returns it.
func RefreshPenaltyTotals(ctx context.Context, s store.Storage, ref models.PaymentRef) (decimal.Decimal, error) {
	penalties, err := s.ListPenalties(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range penalties {
		if p.PaymentStatus == models.PaymentStatusPending {
			total = total.Add(p.PenaltyAmount)
		}
	}
	if len(penalties) == 0 {
		return total, nil
	}
	if err := s.UpdatePenaltyTotals(ctx, ref, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// PayPenalty marks a penalty paid today. Penalties never move the organization balance.
func (l *Ledger) PayPenalty(ctx context.Context, id uint) (*models.Penalty, error) {
	var paid *models.Penalty
	err := l.storage.Transaction(ctx, func(tx store.Storage) error {
		var err error
		paid, err = l.payPenalty(ctx, tx, id, l.Today())
		return err
	})
	return paid, err
}

func (l *Ledger) payPenalty(ctx context.Context, tx store.Storage, id uint, paidDate time.Time) (*models.Penalty, error) {
	p, err := tx.GetPenalty(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus == models.PaymentStatusPaid {
		return p, fmt.Errorf("penalty %d: %w", id, models.ErrAlreadyPaid)
	}
	p.PaymentStatus = models.PaymentStatusPaid
	p.PaidDate = &paidDate
	if err := tx.SavePenalty(ctx, p); err != nil {
		return nil, err
	}
	total, err := RefreshPenaltyTotals(ctx, tx, p.Ref())
	if err != nil {
		return nil, err
	}
	p.TotalPenalty = total
	return p, nil
}
