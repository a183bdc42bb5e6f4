package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func (s *GormStore) GetPenalty(ctx context.Context, id uint, forUpdate bool) (*models.Penalty, error) {
	var p models.Penalty
	if err := s.read(ctx, forUpdate).Preload("User").First(&p, id).Error; err != nil {
		return nil, translate(err, "failed to get penalty")
	}
	return &p, nil
}

func (s *GormStore) SavePenalty(ctx context.Context, p *models.Penalty) error {
	return translate(s.write(ctx).Save(p).Error, "failed to save penalty")
}

func (s *GormStore) InsertPenalty(ctx context.Context, p *models.Penalty) (bool, error) {
	res := s.write(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, translate(res.Error, "failed to insert penalty")
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeletePenalty(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.Penalty{}, id, "penalty")
}

func (s *GormStore) DeletePenaltiesFor(ctx context.Context, ref models.PaymentRef) error {
	err := s.conn(ctx).
		Where("penalty_type = ? AND related_object_id = ?", ref.Type, ref.ID).
		Delete(&models.Penalty{}).Error
	return translate(err, "failed to delete penalties")
}

func (s *GormStore) ListPenalties(ctx context.Context, ref models.PaymentRef) ([]models.Penalty, error) {
	var out []models.Penalty
	err := s.conn(ctx).
		Where("penalty_type = ? AND related_object_id = ?", ref.Type, ref.ID).
		Order("month_number").
		Find(&out).Error
	return out, translate(err, "failed to list penalties")
}

func (s *GormStore) ListPendingPenalties(ctx context.Context, userID uint) ([]models.Penalty, error) {
	q := s.conn(ctx).Preload("User").
		Where("payment_status = ?", models.PaymentStatusPending).
		Order("id")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var out []models.Penalty
	return out, translate(q.Find(&out).Error, "failed to list pending penalties")
}

// UpdatePenaltyTotals writes total onto every penalty for ref.
func (s *GormStore) UpdatePenaltyTotals(ctx context.Context, ref models.PaymentRef, total decimal.Decimal) error {
	err := s.conn(ctx).Model(&models.Penalty{}).
		Where("penalty_type = ? AND related_object_id = ?", ref.Type, ref.ID).
		Update("total_penalty", total).Error
	return translate(err, "failed to update penalty totals")
}
