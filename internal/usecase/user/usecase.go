package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "secure-user-api/internal/domain/user"
	apperrors "secure-user-api/pkg/errors"
)

// Usecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Usecase struct {
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
	now      func() time.Time    // Clock used for created_at and updated_at
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{
		repo:     r,
		log:      log,
		validate: newValidator(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

var _ Service = (*Usecase)(nil)

func validateID(id int64) error {
	if id <= 0 {
		return apperrors.NewValidationError("id", "id must be a positive integer")
	}
	return nil
}

// checkEmailFree reports ErrDuplicateEmail when another user holds email.
// The repository repeats the check inside its transaction; this one only
// avoids a write that is bound to fail.
func (uc *Usecase) checkEmailFree(ctx context.Context, email string, excludeID int64) error {
	existing, err := uc.repo.GetByEmail(ctx, email, excludeID)
	if err != nil {
		uc.log.Error("failed to check existing email", zap.Error(err))
		return apperrors.NewInternalError("failed to validate email uniqueness", err)
	}
	if existing != nil {
		uc.log.Warn("email already exists", zap.Int64("existing_id", existing.ID))
		return apperrors.ErrDuplicateEmail
	}
	return nil
}

// CreateUser creates a new user after validating the request and checking email uniqueness.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	f, err := uc.cleanCreate(in)
	if err != nil {
		uc.log.Warn("validate failed", zap.Error(err))
		return nil, err
	}

	if err := uc.checkEmailFree(ctx, f.Email, 0); err != nil {
		return nil, err
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Email:     f.Email,
		FullName:  f.FullName,
		Bio:       f.Bio,
		CreatedAt: uc.now(),
	})
	if err != nil {
		uc.log.Warn("failed to create user", zap.Error(err))
		return nil, err
	}

	uc.log.Info("user created", zap.Int64("id", created.ID))
	return toDTO(created), nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	if err := validateID(in.ID); err != nil {
		return nil, err
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return toDTO(u), nil
}

// ListUsers retrieves one page of users ordered by id, along with the size of
// the whole collection.
func (uc *Usecase) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	if in.Page < 1 {
		return nil, apperrors.NewValidationError("page", "page must be at least 1")
	}
	if in.PageSize == 0 {
		in.PageSize = domain.DefaultPageSize
	}
	in.PageSize = domain.ClampPageSize(in.PageSize)

	uc.log.Debug("listing users", zap.Int64("page", in.Page), zap.Int64("page_size", in.PageSize))

	domainUsers, total, err := uc.repo.List(ctx, domain.Offset(in.Page, in.PageSize), in.PageSize)
	if err != nil {
		uc.log.Error("failed to list users", zap.Int64("page", in.Page), zap.Int64("page_size", in.PageSize), zap.Error(err))
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = *toDTO(&domainUsers[i])
	}

	return &ListUsersResponse{
		Users:      users,
		Pagination: domain.NewPagination(total, in.Page, in.PageSize),
	}, nil
}

// UpdateUser applies the fields present in the patch. Every update moves
// updated_at forward, even one that changes nothing else. The repository owns
// the read-modify-write so that fields absent from the patch keep whatever a
// concurrent update wrote.
func (uc *Usecase) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	if err := validateID(in.ID); err != nil {
		return nil, err
	}

	patch, err := uc.cleanPatch(in.Patch)
	if err != nil {
		uc.log.Warn("validate failed", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	updated, err := uc.repo.Update(ctx, in.ID, patch, uc.now())
	if err != nil {
		uc.log.Warn("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	uc.log.Info("user updated", zap.Int64("id", in.ID))
	return toDTO(updated), nil
}

// DeleteUser removes a user permanently.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) error {
	if err := validateID(in.ID); err != nil {
		return err
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, u); err != nil {
		uc.log.Warn("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return err
	}

	uc.log.Info("user deleted", zap.Int64("id", in.ID))
	return nil
}
