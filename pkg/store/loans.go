package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/models"
)

func (s *GormStore) GetLoan(ctx context.Context, id uint, forUpdate bool) (*models.Loan, error) {
	var l models.Loan
	if err := s.read(ctx, forUpdate).Preload("User").First(&l, id).Error; err != nil {
		return nil, translate(err, "failed to get loan")
	}
	return &l, nil
}

func (s *GormStore) SaveLoan(ctx context.Context, l *models.Loan) error {
	return translate(s.write(ctx).Save(l).Error, "failed to save loan")
}

func (s *GormStore) DeleteLoan(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.Loan{}, id, "loan")
}

// ListLoans returns loans in any of the given statuses, or all loans when none are given.
func (s *GormStore) ListLoans(ctx context.Context, statuses ...models.LoanStatus) ([]models.Loan, error) {
	q := s.conn(ctx).Preload("User").Order("id")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []models.Loan
	return out, translate(q.Find(&out).Error, "failed to list loans")
}

func (s *GormStore) GetFund(ctx context.Context, id uint, forUpdate bool) (*models.FundManagement, error) {
	var f models.FundManagement
	if err := s.read(ctx, forUpdate).First(&f, id).Error; err != nil {
		return nil, translate(err, "failed to get fund transaction")
	}
	return &f, nil
}

func (s *GormStore) SaveFund(ctx context.Context, f *models.FundManagement) error {
	return translate(s.write(ctx).Save(f).Error, "failed to save fund transaction")
}

func (s *GormStore) DeleteFund(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.FundManagement{}, id, "fund transaction")
}
