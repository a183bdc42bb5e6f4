package ledger

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// SaveFund creates or updates an organizational credit or debit. While approved
// a credit adds to the balance and a debit subtracts; changing the type of an
// approved transaction reverses the old sign and applies the new one.
func (l *Ledger) SaveFund(ctx context.Context, f *models.FundManagement) error {
	if f.Status == "" {
		f.Status = models.FundStatusPending
	}
	if f.Date.IsZero() {
		f.Date = l.Today()
	}
	f.Date = calendar.Truncate(f.Date)
	if err := models.Validate(f); err != nil {
		return err
	}

	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		var old *models.FundManagement
		if f.ID != 0 {
			prev, err := tx.GetFund(ctx, f.ID, true)
			if err != nil {
				return err
			}
			old = prev
			f.CreatedAt = prev.CreatedAt
		}
		if err := tx.SaveFund(ctx, f); err != nil {
			return err
		}
		return settle(ctx, tx, between(fundEffect(old), fundEffect(f)))
	})
}

// DeleteFund removes a fund transaction, reversing it when it was approved.
func (l *Ledger) DeleteFund(ctx context.Context, id uint) error {
	return l.storage.Transaction(ctx, func(tx store.Storage) error {
		old, err := tx.GetFund(ctx, id, true)
		if err != nil {
			return err
		}
		if err := settle(ctx, tx, between(fundEffect(old), decimal.Zero)); err != nil {
			return err
		}
		return tx.DeleteFund(ctx, id)
	})
}
