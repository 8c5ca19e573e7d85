package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"secure-user-api/internal/adapter/db/gormstore"
	"secure-user-api/internal/config"
	"secure-user-api/pkg/logger"
)

// NewDatabase connects to DATABASE_URL with query logging routed through zap.
func NewDatabase(ctx context.Context, cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	sqlLogger := logger.NewSQLLogger(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level)

	db, err := gormstore.Connect(ctx, cfg.DB, &gorm.Config{
		Logger: sqlLogger,
	}, l)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// MigrateDatabase applies pending migrations regardless of DB_AUTO_MIGRATE.
func MigrateDatabase(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	dbCfg := cfg.DB
	dbCfg.AutoMigrate = true

	db, err := gormstore.Connect(ctx, dbCfg, &gorm.Config{
		Logger: logger.NewSQLLogger(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level),
	}, l)
	if err != nil {
		return err
	}
	return CloseDatabase(db)
}

// CloseDatabase closes the database connection
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
