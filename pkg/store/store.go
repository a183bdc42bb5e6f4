package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore implements Storage on top of gorm. One value wraps either the
// connection pool or a single open transaction.
type GormStore struct {
	db *gorm.DB
}

var _ Storage = (*GormStore)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqliteDialector(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get connection pool: %w", err)
	}
	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		// one writer at a time; the write transaction is the lock
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &GormStore{db: db}
	if err := s.Migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("could not migrate schema: %w", err)
	}
	log.Printf("[store] %s database ready", dialector.Name())
	return s, nil
}

// Migrate creates or updates every table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(models.All()...)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Close closes the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// read returns a query handle that locks the selected rows when forUpdate is set.
// The sqlite dialect drops the locking clause.
func (s *GormStore) read(ctx context.Context, forUpdate bool) *gorm.DB {
	db := s.conn(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (s *GormStore) write(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Omit(clause.Associations)
}

// translate maps gorm errors onto the model sentinels.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, models.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func deleteByID(db *gorm.DB, model interface{}, id uint, what string) error {
	res := db.Delete(model, id)
	if res.Error != nil {
		return translate(res.Error, "failed to delete "+what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
	}
	return nil
}
