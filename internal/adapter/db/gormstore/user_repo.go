package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"secure-user-api/internal/domain/user"
	apperrors "secure-user-api/pkg/errors"
)

const (
	pgUniqueViolation      = "23505"
	sqliteConstraintUnique = 2067
)

// UserRepo implements the user Repository on top of GORM.
// Every mutation runs in its own transaction: committed on success, rolled back on any error.
type UserRepo struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// Timestamps are managed by the service, not by GORM.
type UserSchema struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	Email     string     `gorm:"size:320;not null;uniqueIndex:idx_users_email"`
	FullName  string     `gorm:"size:100;not null"`
	Bio       *string    `gorm:"size:500"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func toSchema(u *user.User) UserSchema {
	return UserSchema{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (m *UserSchema) toDomain() *user.User {
	u := &user.User{
		ID:        m.ID,
		Email:     m.Email,
		FullName:  m.FullName,
		Bio:       m.Bio,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.UpdatedAt != nil {
		t := m.UpdatedAt.UTC()
		u.UpdatedAt = &t
	}
	return u
}

// Create inserts a new user. The email check and the insert share one
// transaction; the unique index settles races the check cannot see.
func (r *UserRepo) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := toSchema(u)
	model.ID = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, model.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrDuplicateEmail
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return nil, r.translate(ctx, "create", err, zap.String("email", u.Email))
	}

	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return model.toDomain(), nil
}

// GetByID retrieves a user by ID, or ErrUserNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return model.toDomain(), nil
}

// GetByEmail retrieves the user holding email, ignoring excludeID when it is
// positive. It returns nil, nil when there is no such user.
func (r *UserRepo) GetByEmail(ctx context.Context, email string, excludeID int64) (*user.User, error) {
	var model UserSchema
	q := r.db.WithContext(ctx).Where("email = ?", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to get user by email from db", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return model.toDomain(), nil
}

// List returns a page of users ordered by id and the size of the whole collection.
func (r *UserRepo) List(ctx context.Context, offset, limit int64) ([]user.User, int64, error) {
	var (
		models []UserSchema
		total  int64
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&UserSchema{}).Count(&total).Error; err != nil {
			return err
		}
		if offset >= total {
			return nil
		}
		return tx.Order("id ASC").Offset(int(offset)).Limit(int(limit)).Find(&models).Error
	})
	if err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.Int64("offset", offset), zap.Int64("limit", limit))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *models[i].toDomain()
	}

	return users, total, nil
}

// Update applies patch to the stored user and moves updated_at past now.
// The read, the email check and the write share one transaction, and only the
// columns present in patch are written, so concurrent updates of other fields
// are never reverted.
func (r *UserRepo) Update(ctx context.Context, id int64, patch user.Patch, now time.Time) (*user.User, error) {
	var updated *user.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserSchema
		if err := lockForUpdate(tx).First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrUserNotFound
			}
			return err
		}
		u := model.toDomain()

		if patch.Email.Set && !patch.Email.Null && patch.Email.Value != u.Email {
			taken, err := emailTaken(tx, patch.Email.Value, id)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.ErrDuplicateEmail
			}
		}

		patch.Apply(u)
		u.Touch(now)

		res := tx.Model(&UserSchema{}).Where("id = ?", id).Updates(changedColumns(u, patch))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, r.translate(ctx, "update", err, zap.Int64("id", id))
	}

	r.log.Info("user updated in db", zap.Int64("id", id))
	return updated, nil
}

// lockForUpdate takes a row lock where the dialect has one. SQLite runs with a
// single connection, so its transactions are already serialized.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// changedColumns lists updated_at plus the columns patch sets.
func changedColumns(u *user.User, patch user.Patch) map[string]any {
	cols := map[string]any{"updated_at": u.UpdatedAt}
	if patch.Email.Set {
		cols["email"] = u.Email
	}
	if patch.FullName.Set {
		cols["full_name"] = u.FullName
	}
	if patch.Bio.Set {
		cols["bio"] = u.Bio
	}
	return cols
}

// Delete removes a user permanently.
func (r *UserRepo) Delete(ctx context.Context, u *user.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&UserSchema{}, u.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return r.translate(ctx, "delete", err, zap.Int64("id", u.ID))
	}

	r.log.Info("user deleted in db", zap.Int64("id", u.ID))
	return nil
}

// Ping checks that the database answers.
func (r *UserRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func emailTaken(tx *gorm.DB, email string, excludeID int64) (bool, error) {
	var count int64
	q := tx.Model(&UserSchema{}).Where("email = ?", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// translate maps storage errors to domain errors and wraps everything else.
func (r *UserRepo) translate(ctx context.Context, op string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, apperrors.ErrDuplicateEmail), isUniqueViolation(err):
		r.log.Warn("email already registered", append(fields, zap.String("op", op))...)
		return apperrors.ErrDuplicateEmail
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	case ctx.Err() != nil:
		return fmt.Errorf("failed to %s user: %w", op, ctx.Err())
	}

	r.log.Error("failed to "+op+" user in db", append(fields, zap.Error(err))...)
	return fmt.Errorf("failed to %s user: %w", op, err)
}

// isUniqueViolation recognizes unique-constraint failures from every supported driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code() == sqliteConstraintUnique {
		return true
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
