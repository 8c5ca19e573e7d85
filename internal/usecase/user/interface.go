package user

import (
	"context"
	"time"

	domain "secure-user-api/internal/domain/user"
)

// Service defines the user business operations consumed by the transport layer.
type Service interface {
	CreateUser(ctx context.Context, in CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) error
	GetUser(ctx context.Context, in GetUserRequest) (*User, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
}

// Repository defines the interface for user data access operations.
// Implementations must make the email check and the write of Create and
// Update atomic, and report a taken email as errors.ErrDuplicateEmail. Update
// reads, patches and writes the row in one transaction and leaves columns the
// patch does not set untouched.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)                              // Insert a user and return it with its id
	GetByID(ctx context.Context, id int64) (*domain.User, error)                                   // Retrieve user by ID or ErrUserNotFound
	GetByEmail(ctx context.Context, email string, excludeID int64) (*domain.User, error)           // Retrieve the holder of email, nil if none
	List(ctx context.Context, offset, limit int64) ([]domain.User, int64, error)                   // Page ordered by id plus total count
	Update(ctx context.Context, id int64, patch domain.Patch, now time.Time) (*domain.User, error) // Apply patch and touch updated_at
	Delete(ctx context.Context, u *domain.User) error                                              // Hard delete
}
