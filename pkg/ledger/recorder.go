package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ClientTxnID builds the gateway order id for ref at the given time.
func ClientTxnID(ref models.PaymentRef, at time.Time) string {
	return fmt.Sprintf("%s_%d_%d", ref.Type, ref.ID, at.Unix())
}

// CashClientTxnID builds the id of a cash payment transaction.
func CashClientTxnID(ref models.PaymentRef, at time.Time) string {
	return "cash_" + ClientTxnID(ref, at)
}

type payer struct {
	userID uint
	name   string
}

// recordCash replaces every transaction recorded for ref with one successful
// cash transaction. Callers invoke it only on a transition into paid.
func (l *Ledger) recordCash(ctx context.Context, tx store.Storage, ref models.PaymentRef, who payer, amount decimal.Decimal, paidDate *time.Time) error {
	if _, err := tx.DeletePaymentTransactions(ctx, ref, 0); err != nil {
		return err
	}
	txnDate := l.Today()
	if paidDate != nil {
		txnDate = *paidDate
	}
	t := &models.PaymentTransaction{
		PaymentType:     ref.Type,
		RelatedObjectID: ref.ID,
		UserID:          who.userID,
		ClientTxnID:     CashClientTxnID(ref, l.now()),
		Amount:          amount,
		Status:          models.TransactionStatusSuccess,
		PaymentMethod:   models.PaymentMethodCash,
		CustomerName:    who.name,
		TxnDate:         &txnDate,
	}
	if err := tx.CreatePaymentTransaction(ctx, t); err != nil {
		return err
	}
	log.Printf("[recorder] cash payment %s recorded for %s", t.ClientTxnID, ref)
	return nil
}

// GatewayResult is what the payment gateway reported for one order.
type GatewayResult struct {
	Status       models.TransactionStatus
	UPITxnID     string
	CustomerName string
	TxnDate      *time.Time
	Raw          []byte
}

// SettleGatewayTransaction applies a gateway status to the order's transaction.
// On success the transaction is promoted, every other transaction for the same
// obligation is removed and the obligation is marked paid, in one database
// transaction. A transaction that already succeeded is returned unchanged.
func (l *Ledger) SettleGatewayTransaction(ctx context.Context, clientTxnID string, res GatewayResult) (*models.PaymentTransaction, error) {
	var settled *models.PaymentTransaction
	err := l.storage.Transaction(ctx, func(tx store.Storage) error {
		t, err := tx.GetPaymentTransactionByClientTxnID(ctx, clientTxnID, true)
		if err != nil {
			return err
		}
		settled = t
		if t.Status == models.TransactionStatusSuccess {
			return nil
		}

		if len(res.Raw) > 0 {
			t.GatewayResponse = datatypes.JSON(res.Raw)
		}
		if res.UPITxnID != "" {
			t.UPITxnID = res.UPITxnID
		}
		if res.CustomerName != "" {
			t.CustomerName = res.CustomerName
		}
		if res.TxnDate != nil {
			t.TxnDate = res.TxnDate
		}

		switch res.Status {
		case models.TransactionStatusSuccess:
			if _, err := tx.DeletePaymentTransactions(ctx, t.Ref(), t.ID); err != nil {
				return err
			}
			t.Status = models.TransactionStatusSuccess
			if err := tx.SavePaymentTransaction(ctx, t); err != nil {
				return err
			}
			paidDate := l.Today()
			if t.TxnDate != nil {
				paidDate = *t.TxnDate
			}
			return l.markPaid(ctx, tx, t.Ref(), paidDate)
		case models.TransactionStatusFailed, models.TransactionStatusCancelled:
			t.Status = res.Status
		}
		return tx.SavePaymentTransaction(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle %s: %w", clientTxnID, err)
	}
	return settled, nil
}

// markPaid moves the obligation behind ref into paid through its hook. It is a
// no-op for an obligation that is already paid.
func (l *Ledger) markPaid(ctx context.Context, tx store.Storage, ref models.PaymentRef, paidDate time.Time) error {
	switch ref.Type {
	case models.PaymentTypeDeposit:
		d, err := tx.GetDeposit(ctx, ref.ID, true)
		if err != nil {
			return err
		}
		if d.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		d.PaymentStatus, d.PaidDate = models.PaymentStatusPaid, &paidDate
		return l.saveDeposit(ctx, tx, d, models.PaymentMethodGateway)
	case models.PaymentTypeInterest:
		p, err := tx.GetInterestPayment(ctx, ref.ID, true)
		if err != nil {
			return err
		}
		if p.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		p.PaymentStatus, p.PaidDate = models.PaymentStatusPaid, &paidDate
		return l.saveInterestPayment(ctx, tx, p, models.PaymentMethodGateway)
	case models.PaymentTypePrincipal:
		p, err := tx.GetPrincipalPayment(ctx, ref.ID, true)
		if err != nil {
			return err
		}
		if p.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		p.PaymentStatus, p.PaidDate = models.PaymentStatusPaid, &paidDate
		return l.savePrincipalPayment(ctx, tx, p, models.PaymentMethodGateway)
	case models.PaymentTypePenalty:
		_, err := l.payPenalty(ctx, tx, ref.ID, paidDate)
		if errors.Is(err, models.ErrAlreadyPaid) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown payment type %q", ref.Type)
}
