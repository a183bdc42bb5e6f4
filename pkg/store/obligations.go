package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"gorm.io/gorm/clause"
)

func (s *GormStore) GetDeposit(ctx context.Context, id uint, forUpdate bool) (*models.Deposit, error) {
	var d models.Deposit
	if err := s.read(ctx, forUpdate).Preload("User").First(&d, id).Error; err != nil {
		return nil, translate(err, "failed to get deposit")
	}
	return &d, nil
}

func (s *GormStore) SaveDeposit(ctx context.Context, d *models.Deposit) error {
	return translate(s.write(ctx).Save(d).Error, "failed to save deposit")
}

func (s *GormStore) DeleteDeposit(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.Deposit{}, id, "deposit")
}

func (s *GormStore) ListDeposits(ctx context.Context, f ObligationFilter) ([]models.Deposit, error) {
	q := s.conn(ctx).Preload("User").Preload("Membership").Order("date, id")
	if f.Status != "" {
		q = q.Where("payment_status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	var out []models.Deposit
	return out, translate(q.Find(&out).Error, "failed to list deposits")
}

// DepositExistsForMonth matches a deposit for the month by its date, its label or its period.
func (s *GormStore) DepositExistsForMonth(ctx context.Context, userID, membershipID uint, ym calendar.YearMonth) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Deposit{}).
		Where("user_id = ? AND membership_id = ?", userID, membershipID).
		Where("(date >= ? AND date < ?) OR name = ? OR period = ?", ym.First(), ym.Next().First(), ym.Label(), ym.Period()).
		Count(&n).Error
	return n > 0, translate(err, "failed to check deposit month")
}

func (s *GormStore) InsertPendingDeposit(ctx context.Context, d *models.Deposit) (bool, error) {
	res := s.write(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(d)
	if res.Error != nil {
		return false, translate(res.Error, "failed to insert deposit")
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) GetInterestPayment(ctx context.Context, id uint, forUpdate bool) (*models.InterestPayment, error) {
	var p models.InterestPayment
	if err := s.read(ctx, forUpdate).Preload("Loan.User").First(&p, id).Error; err != nil {
		return nil, translate(err, "failed to get interest payment")
	}
	return &p, nil
}

func (s *GormStore) SaveInterestPayment(ctx context.Context, p *models.InterestPayment) error {
	return translate(s.write(ctx).Save(p).Error, "failed to save interest payment")
}

func (s *GormStore) DeleteInterestPayment(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.InterestPayment{}, id, "interest payment")
}

func (s *GormStore) ListInterestPayments(ctx context.Context, f ObligationFilter) ([]models.InterestPayment, error) {
	db := s.conn(ctx)
	q := db.Preload("Loan.User").Order("id")
	if f.Status != "" {
		q = q.Where("payment_status = ?", f.Status)
	}
	if f.LoanID != 0 {
		q = q.Where("loan_id = ?", f.LoanID)
	}
	if f.UserID != 0 {
		q = q.Where("loan_id IN (?)", db.Model(&models.Loan{}).Select("id").Where("user_id = ?", f.UserID))
	}
	var out []models.InterestPayment
	return out, translate(q.Find(&out).Error, "failed to list interest payments")
}

// InterestPaymentExistsForMonth matches by due or paid date, label or period.
func (s *GormStore) InterestPaymentExistsForMonth(ctx context.Context, loanID uint, ym calendar.YearMonth) (bool, error) {
	from, to := ym.First(), ym.Next().First()
	var n int64
	err := s.conn(ctx).Model(&models.InterestPayment{}).
		Where("loan_id = ?", loanID).
		Where("(due_date >= ? AND due_date < ?) OR (paid_date >= ? AND paid_date < ?) OR name = ? OR period = ?",
			from, to, from, to, ym.Label(), ym.Period()).
		Count(&n).Error
	return n > 0, translate(err, "failed to check interest month")
}

func (s *GormStore) InsertPendingInterestPayment(ctx context.Context, p *models.InterestPayment) (bool, error) {
	res := s.write(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, translate(res.Error, "failed to insert interest payment")
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) GetPrincipalPayment(ctx context.Context, id uint, forUpdate bool) (*models.PrincipalPayment, error) {
	var p models.PrincipalPayment
	if err := s.read(ctx, forUpdate).Preload("Loan.User").First(&p, id).Error; err != nil {
		return nil, translate(err, "failed to get principal payment")
	}
	return &p, nil
}

func (s *GormStore) SavePrincipalPayment(ctx context.Context, p *models.PrincipalPayment) error {
	return translate(s.write(ctx).Save(p).Error, "failed to save principal payment")
}

func (s *GormStore) DeletePrincipalPayment(ctx context.Context, id uint) error {
	return deleteByID(s.conn(ctx), &models.PrincipalPayment{}, id, "principal payment")
}

func (s *GormStore) ListPrincipalPayments(ctx context.Context, loanID uint) ([]models.PrincipalPayment, error) {
	var out []models.PrincipalPayment
	err := s.conn(ctx).Where("loan_id = ?", loanID).Order("id").Find(&out).Error
	return out, translate(err, "failed to list principal payments")
}
