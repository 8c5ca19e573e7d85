package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger sends GORM's statement log to zap. Statements keep their
// placeholders, so user data never reaches the log.
type SQLLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var (
	_ gormlogger.Interface = (*SQLLogger)(nil)
	_ gorm.ParamsFilter    = (*SQLLogger)(nil)
)

// NewSQLLogger maps the service log level onto GORM's. Statements are only
// traced at debug; otherwise just failures and queries slower than
// slowQuerySeconds are logged.
func NewSQLLogger(l *zap.Logger, slowQuerySeconds float64, level string) *SQLLogger {
	return &SQLLogger{
		log:   l,
		level: sqlLogLevel(level),
		slow:  time.Duration(slowQuerySeconds * float64(time.Second)),
	}
}

func sqlLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// LogMode returns a copy logging at level.
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		WithContext(ctx, l.log).Sugar().Infof(msg, data...)
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		WithContext(ctx, l.log).Sugar().Warnf(msg, data...)
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		WithContext(ctx, l.log).Sugar().Errorf(msg, data...)
	}
}

// ParamsFilter drops bound values before GORM renders the statement.
func (l *SQLLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

// Trace logs one finished statement. A missing row is an answer, not a failure.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow

	switch {
	case failed && l.level >= gormlogger.Error:
		WithContext(ctx, l.log).Error("sql failed", append(statement(fc, elapsed), zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		WithContext(ctx, l.log).Warn("slow sql", append(statement(fc, elapsed), zap.Duration("threshold", l.slow))...)
	case l.level >= gormlogger.Info:
		WithContext(ctx, l.log).Debug("sql", statement(fc, elapsed)...)
	}
}

func statement(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	return []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
}
