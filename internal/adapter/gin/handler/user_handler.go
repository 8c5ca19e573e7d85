package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-user-api/internal/adapter/gin/response"
	domain "secure-user-api/internal/domain/user"
	"secure-user-api/internal/usecase/user"
	apperrors "secure-user-api/pkg/errors"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	svc user.Service
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(svc user.Service, log *zap.Logger) *UserHandler {
	return &UserHandler{
		svc: svc,
		log: log,
	}
}

// CreateUserRequest represents the HTTP request body for creating a user
type CreateUserRequest struct {
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Bio      *string `json:"bio"`
}

// UpdateUserRequest represents the HTTP request body for updating a user.
// Keys left out of the body are left untouched.
type UpdateUserRequest struct {
	Email    domain.Optional[string] `json:"email"`
	FullName domain.Optional[string] `json:"full_name"`
	Bio      domain.Optional[string] `json:"bio"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Bio       *string    `json:"bio"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ListUsersResponse represents the HTTP response for listing users
type ListUsersResponse struct {
	Total    int64          `json:"total"`
	Page     int64          `json:"page"`
	PageSize int64          `json:"page_size"`
	Items    []UserResponse `json:"items"`
}

func toResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.handleError(c, err)
		return
	}

	resp, err := h.svc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Email:    req.Email,
		FullName: req.FullName,
		Bio:      req.Bio,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(resp))
}

// GetUser handles GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp, err := h.svc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// UpdateUser handles PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	var req UpdateUserRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.handleError(c, err)
		return
	}

	resp, err := h.svc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID: id,
		Patch: domain.Patch{
			Email:    req.Email,
			FullName: req.FullName,
			Bio:      req.Bio,
		},
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// DeleteUser handles DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id}); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		h.handleError(c, apperrors.NewValidationError("page", "page must be a positive integer"))
		return
	}

	pageSize, err := strconv.ParseInt(c.DefaultQuery("page_size", strconv.Itoa(domain.DefaultPageSize)), 10, 64)
	if err != nil {
		h.handleError(c, apperrors.NewValidationError("page_size", "page_size must be an integer"))
		return
	}
	pageSize = domain.ClampPageSize(pageSize)

	resp, err := h.svc.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]UserResponse, len(resp.Users))
	for i := range resp.Users {
		items[i] = toResponse(&resp.Users[i])
	}

	c.JSON(http.StatusOK, ListUsersResponse{
		Total:    resp.Pagination.Total,
		Page:     resp.Pagination.Page,
		PageSize: resp.Pagination.PageSize,
		Items:    items,
	})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "id must be a positive integer")
	}
	return id, nil
}

// handleError converts usecase errors to appropriate HTTP responses
func (h *UserHandler) handleError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.TooLarge(c)
		return
	}

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		h.log.Debug("request rejected", zap.String("path", c.FullPath()), zap.String("field", verr.Field), zap.String("reason", verr.Message))
	}

	response.Error(c, h.log, err)
}
