package store

import (
	"context"
	"fmt"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func ensureBalance(db *gorm.DB) error {
	row := models.Balance{ID: models.BalanceID, Balance: decimal.Zero}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *GormStore) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	db := s.conn(ctx)
	if err := ensureBalance(db); err != nil {
		return decimal.Zero, fmt.Errorf("failed to create balance row: %w", err)
	}
	var b models.Balance
	if err := db.First(&b, models.BalanceID).Error; err != nil {
		return decimal.Zero, translate(err, "failed to read balance")
	}
	return b.Balance, nil
}

// AdjustBalance is the only writer of the balance row. It takes the row lock
// before reading so concurrent adjustments serialize.
func (s *GormStore) AdjustBalance(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	var updated decimal.Decimal
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBalance(tx); err != nil {
			return fmt.Errorf("failed to create balance row: %w", err)
		}
		var b models.Balance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, models.BalanceID).Error; err != nil {
			return translate(err, "failed to lock balance")
		}
		updated = b.Balance.Add(delta)
		if err := tx.Model(&b).Update("balance", updated).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return updated, nil
}

func (s *GormStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	db := s.conn(ctx)
	defaults := models.DefaultSettings()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, fmt.Errorf("failed to create settings row: %w", err)
	}
	var settings models.Settings
	if err := db.First(&settings, models.SettingsID).Error; err != nil {
		return nil, translate(err, "failed to read settings")
	}
	return &settings, nil
}

func (s *GormStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if err := models.Validate(settings); err != nil {
		return err
	}
	settings.ID = models.SettingsID
	if err := s.conn(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
