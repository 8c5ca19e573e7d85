package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"secure-user-api/internal/config"
)

// sqliteBusyTimeout makes a connection wait for a competing writer instead of failing at once.
const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// Dialector returns the gorm dialector for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		if !strings.Contains(dsn, "busy_timeout") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + sqliteBusyTimeout
		}
		return sqlite.Open(dsn), nil
	case config.DriverPostgres:
		return pgdriver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects to the database. TranslateError lets drivers that support it
// report unique violations as gorm.ErrDuplicatedKey.
func Open(driver, dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	d, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	gormCfg.TranslateError = true

	db, err := gorm.Open(d, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Connect opens the database named by cfg, sizes its connection pool and
// applies pending migrations when cfg.AutoMigrate is set.
//
// SQLite allows a single writer, so its pool is pinned to one connection.
func Connect(ctx context.Context, cfg config.DatabaseConfig, gormCfg *gorm.Config, log *zap.Logger) (*gorm.DB, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	db, err := Open(driver, cfg.DSN(), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if driver == config.DriverSQLite {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db, driver, log); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	log.Info("database connected",
		zap.String("driver", driver),
		zap.Int("max_open_conns", maxOpen),
		zap.Bool("auto_migrate", cfg.AutoMigrate),
	)
	return db, nil
}
