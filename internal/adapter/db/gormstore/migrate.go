package gormstore

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"secure-user-api/internal/config"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.log.Fatalf(format, v...) }

// Migrate applies every pending migration for driver.
func Migrate(ctx context.Context, db *gorm.DB, driver string, log *zap.Logger) error {
	var dialect, dir string
	switch driver {
	case config.DriverSQLite:
		dialect, dir = "sqlite3", "migrations/sqlite"
	case config.DriverPostgres:
		dialect, dir = "postgres", "migrations/postgres"
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log.Named("migrate").Sugar()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
