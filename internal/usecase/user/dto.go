package user

import (
	"time"

	domain "secure-user-api/internal/domain/user"
)

// CreateUserRequest represents the request payload for creating a new user.
// Values arrive raw; the usecase sanitizes and validates them.
type CreateUserRequest struct {
	Email    string
	FullName string
	Bio      *string
}

// UpdateUserRequest represents a partial update of an existing user.
type UpdateUserRequest struct {
	ID    int64
	Patch domain.Patch
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// ListUsersRequest represents the request payload for listing users.
type ListUsersRequest struct {
	Page     int64
	PageSize int64
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users      []User
	Pagination *domain.Pagination
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID        int64
	Email     string
	FullName  string
	Bio       *string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func toDTO(u *domain.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
