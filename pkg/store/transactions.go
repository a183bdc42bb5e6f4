package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/models"
)

func (s *GormStore) CreatePaymentTransaction(ctx context.Context, t *models.PaymentTransaction) error {
	return translate(s.write(ctx).Create(t).Error, "failed to create payment transaction")
}

func (s *GormStore) SavePaymentTransaction(ctx context.Context, t *models.PaymentTransaction) error {
	return translate(s.write(ctx).Save(t).Error, "failed to save payment transaction")
}

func (s *GormStore) GetPaymentTransactionByClientTxnID(ctx context.Context, clientTxnID string, forUpdate bool) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := s.read(ctx, forUpdate).Where("client_txn_id = ?", clientTxnID).First(&t).Error
	if err != nil {
		return nil, translate(err, "failed to get payment transaction")
	}
	return &t, nil
}

func (s *GormStore) ListPaymentTransactions(ctx context.Context, ref models.PaymentRef) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	err := s.conn(ctx).
		Where("payment_type = ? AND related_object_id = ?", ref.Type, ref.ID).
		Order("id").
		Find(&out).Error
	return out, translate(err, "failed to list payment transactions")
}

func (s *GormStore) DeletePaymentTransactions(ctx context.Context, ref models.PaymentRef, exceptID uint) (int64, error) {
	q := s.conn(ctx).Where("payment_type = ? AND related_object_id = ?", ref.Type, ref.ID)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	res := q.Delete(&models.PaymentTransaction{})
	return res.RowsAffected, translate(res.Error, "failed to delete payment transactions")
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.write(ctx).Create(n).Error, "failed to record notification")
}
