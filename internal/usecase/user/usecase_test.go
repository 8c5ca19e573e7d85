package user

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secure-user-api/internal/adapter/db/gormstore"
	"secure-user-api/internal/config"
	domain "secure-user-api/internal/domain/user"
	apperrors "secure-user-api/pkg/errors"
)

// MockRepository is a mock implementation of the Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	args := m.Called(ctx, u)
	if fn, ok := args.Get(0).(func(context.Context, *domain.User) *domain.User); ok {
		return fn(ctx, u), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string, excludeID int64) (*domain.User, error) {
	args := m.Called(ctx, email, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, offset, limit int64) ([]domain.User, int64, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]domain.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, id int64, patch domain.Patch, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, id, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func setupTestUsecase(t *testing.T) (*Usecase, *MockRepository) {
	mockRepo := new(MockRepository)
	uc := New(mockRepo, zaptest.NewLogger(t))
	uc.now = func() time.Time { return fixedNow }
	return uc, mockRepo
}

func strPtr(s string) *string { return &s }

func requireValidationError(t *testing.T, err error, field string) *apperrors.ValidationError {
	t.Helper()
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
	return verr
}

// ==================== CREATE USER TESTS ====================

func TestCreateUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "alice@example.com", int64(0)).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "alice@example.com" &&
			u.FullName == "Alice Smith" &&
			u.Bio != nil && *u.Bio == "xHello" &&
			u.CreatedAt.Equal(fixedNow) &&
			u.UpdatedAt == nil
	})).Return(func(_ context.Context, u *domain.User) *domain.User {
		out := *u
		out.ID = 1
		return &out
	}, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{
		Email:    "alice@example.com",
		FullName: "Alice Smith",
		Bio:      strPtr("<script>x</script>Hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "xHello", *resp.Bio)
	assert.Nil(t, resp.UpdatedAt)
	mockRepo.AssertExpectations(t)
}

func TestCreateUser_SanitizesAndNormalizes(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "Alice@example.com", int64(0)).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "Alice@example.com" && u.FullName == "Alice Smith" && u.Bio == nil
	})).Return(&domain.User{ID: 2, Email: "Alice@example.com", FullName: "Alice Smith", CreatedAt: fixedNow}, nil)

	_, err := uc.CreateUser(ctx, CreateUserRequest{
		Email:    "  Alice@EXAMPLE.com ",
		FullName: " <b>Alice</b>\n\t Smith ",
	})

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestCreateUser_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateUserRequest
		field   string
		message string
	}{
		{
			name:    "email required",
			req:     CreateUserRequest{FullName: "Alice Smith"},
			field:   "email",
			message: "email is required",
		},
		{
			name:    "email invalid",
			req:     CreateUserRequest{Email: "not-an-email", FullName: "Alice Smith"},
			field:   "email",
			message: "email must be a valid email",
		},
		{
			name:    "full name required",
			req:     CreateUserRequest{Email: "a@example.com"},
			field:   "full_name",
			message: "full_name is required",
		},
		{
			name:    "full name collapses below minimum",
			req:     CreateUserRequest{Email: "a@example.com", FullName: "<b> </b>A<b></b>"},
			field:   "full_name",
			message: "full_name must be at least 2 characters",
		},
		{
			name:    "full name too long",
			req:     CreateUserRequest{Email: "a@example.com", FullName: strings.Repeat("a", 101)},
			field:   "full_name",
			message: "full_name must be at most 100 characters",
		},
		{
			name:    "bio too long after sanitizing",
			req:     CreateUserRequest{Email: "a@example.com", FullName: "Alice", Bio: strPtr("<p>" + strings.Repeat("b", 501) + "</p>")},
			field:   "bio",
			message: "bio must be at most 500 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)

			resp, err := uc.CreateUser(context.Background(), tt.req)

			assert.Nil(t, resp)
			verr := requireValidationError(t, err, tt.field)
			assert.Equal(t, tt.message, verr.Message)
			mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateUser_LengthLimitsCountCharacters(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	name := strings.Repeat("é", 100)
	mockRepo.On("GetByEmail", ctx, "a@example.com", int64(0)).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.Anything).Return(&domain.User{ID: 1, FullName: name}, nil)

	_, err := uc.CreateUser(ctx, CreateUserRequest{Email: "a@example.com", FullName: name})
	assert.NoError(t, err)
}

func TestCreateUser_EmptyBioIsKept(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "a@example.com", int64(0)).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Bio != nil && *u.Bio == ""
	})).Return(&domain.User{ID: 1, Bio: strPtr("")}, nil)

	_, err := uc.CreateUser(ctx, CreateUserRequest{Email: "a@example.com", FullName: "Alice", Bio: strPtr("<i></i>")})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestCreateUser_EmailAlreadyExists(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "taken@example.com", int64(0)).
		Return(&domain.User{ID: 9, Email: "taken@example.com"}, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{Email: "taken@example.com", FullName: "Alice"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateUser_RepositoryReportsDuplicate(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "race@example.com", int64(0)).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.Anything).Return(nil, apperrors.ErrDuplicateEmail)

	_, err := uc.CreateUser(ctx, CreateUserRequest{Email: "race@example.com", FullName: "Alice"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

func TestCreateUser_EmailCheckFails(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	dbErr := errors.New("database connection failed")
	mockRepo.On("GetByEmail", ctx, "a@example.com", int64(0)).Return(nil, dbErr)

	_, err := uc.CreateUser(ctx, CreateUserRequest{Email: "a@example.com", FullName: "Alice"})

	var ierr *apperrors.InternalError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, dbErr)
}

// ==================== GET USER TESTS ====================

func TestGetUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(3)).Return(&domain.User{ID: 3, Email: "a@example.com", FullName: "Alice"}, nil)

	resp, err := uc.GetUser(ctx, GetUserRequest{ID: 3})

	require.NoError(t, err)
	assert.Equal(t, "a@example.com", resp.Email)
}

func TestGetUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(3)).Return(nil, apperrors.ErrUserNotFound)

	_, err := uc.GetUser(ctx, GetUserRequest{ID: 3})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestGetUser_InvalidID(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)

	_, err := uc.GetUser(context.Background(), GetUserRequest{ID: 0})

	requireValidationError(t, err, "id")
	mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// ==================== LIST USERS TESTS ====================

func TestListUsers(t *testing.T) {
	tests := []struct {
		name       string
		req        ListUsersRequest
		wantOffset int64
		wantLimit  int64
	}{
		{name: "default page size", req: ListUsersRequest{Page: 1}, wantOffset: 0, wantLimit: 20},
		{name: "third page", req: ListUsersRequest{Page: 3, PageSize: 10}, wantOffset: 20, wantLimit: 10},
		{name: "page size clamped to max", req: ListUsersRequest{Page: 1, PageSize: 1000}, wantOffset: 0, wantLimit: 100},
		{name: "negative page size clamped to one", req: ListUsersRequest{Page: 2, PageSize: -5}, wantOffset: 1, wantLimit: 1},
		{name: "huge page does not wrap", req: ListUsersRequest{Page: math.MaxInt64, PageSize: 100}, wantOffset: math.MaxInt64, wantLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)
			ctx := context.Background()

			mockRepo.On("List", ctx, tt.wantOffset, tt.wantLimit).
				Return([]domain.User{{ID: 1}, {ID: 2}}, int64(42), nil)

			resp, err := uc.ListUsers(ctx, tt.req)

			require.NoError(t, err)
			assert.Len(t, resp.Users, 2)
			assert.Equal(t, int64(42), resp.Pagination.Total)
			assert.Equal(t, tt.req.Page, resp.Pagination.Page)
			assert.Equal(t, tt.wantLimit, resp.Pagination.PageSize)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestListUsers_InvalidPage(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)

	_, err := uc.ListUsers(context.Background(), ListUsersRequest{Page: 0, PageSize: 10})

	requireValidationError(t, err, "page")
	mockRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

// ==================== UPDATE USER TESTS ====================

func existingUser() *domain.User {
	return &domain.User{
		ID:        7,
		Email:     "old@example.com",
		FullName:  "Old Name",
		Bio:       strPtr("old bio"),
		CreatedAt: fixedNow.Add(-time.Hour),
	}
}

// patched mimics the repository: the patch lands on the stored row.
func patched(patch domain.Patch) *domain.User {
	u := existingUser()
	patch.Apply(u)
	u.Touch(fixedNow)
	return u
}

func TestUpdateUser_BioOnly(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	want := domain.Patch{Bio: domain.Some("new bio")}
	mockRepo.On("Update", ctx, int64(7), want, fixedNow).Return(patched(want), nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{
		ID:    7,
		Patch: domain.Patch{Bio: domain.Some("<em>new</em> bio")},
	})

	require.NoError(t, err)
	assert.Equal(t, "old@example.com", resp.Email)
	assert.Equal(t, "Old Name", resp.FullName)
	assert.Equal(t, "new bio", *resp.Bio)
	require.NotNil(t, resp.UpdatedAt)
	assert.True(t, resp.UpdatedAt.After(resp.CreatedAt))
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_CleansPatchBeforeRepository(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	want := domain.Patch{
		Email:    domain.Some("New@example.com"),
		FullName: domain.Some("New Name"),
	}
	mockRepo.On("Update", ctx, int64(7), want, fixedNow).Return(patched(want), nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{
		ID: 7,
		Patch: domain.Patch{
			Email:    domain.Some("  New@EXAMPLE.com "),
			FullName: domain.Some(" <b>New</b>   Name "),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "New@example.com", resp.Email)
	assert.Equal(t, "New Name", resp.FullName)
	mockRepo.AssertExpectations(t)
}

func TestUpdateUser_NullBioClears(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	want := domain.Patch{Bio: domain.Null[string]()}
	mockRepo.On("Update", ctx, int64(7), want, fixedNow).Return(patched(want), nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 7, Patch: domain.Patch{Bio: domain.Null[string]()}})

	require.NoError(t, err)
	assert.Nil(t, resp.Bio)
	mockRepo.AssertExpectations(t)
}

func TestUpdateUser_NullRequiredFieldsRejected(t *testing.T) {
	tests := []struct {
		name  string
		patch domain.Patch
		field string
	}{
		{name: "email", patch: domain.Patch{Email: domain.Null[string]()}, field: "email"},
		{name: "full name", patch: domain.Patch{FullName: domain.Null[string]()}, field: "full_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)

			_, err := uc.UpdateUser(context.Background(), UpdateUserRequest{ID: 7, Patch: tt.patch})

			requireValidationError(t, err, tt.field)
			mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateUser_InvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		patch domain.Patch
		field string
	}{
		{name: "empty email", patch: domain.Patch{Email: domain.Some("")}, field: "email"},
		{name: "bad email", patch: domain.Patch{Email: domain.Some("nope")}, field: "email"},
		{name: "short name", patch: domain.Patch{FullName: domain.Some("<b> </b>A<b></b>")}, field: "full_name"},
		{name: "long bio", patch: domain.Patch{Bio: domain.Some(strings.Repeat("x", 501))}, field: "bio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)

			_, err := uc.UpdateUser(context.Background(), UpdateUserRequest{ID: 7, Patch: tt.patch})

			requireValidationError(t, err, tt.field)
			mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateUser_InvalidID(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)

	_, err := uc.UpdateUser(context.Background(), UpdateUserRequest{ID: 0, Patch: domain.Patch{Bio: domain.Some("x")}})

	requireValidationError(t, err, "id")
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_RepositoryErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "email conflict", err: apperrors.ErrDuplicateEmail},
		{name: "not found", err: apperrors.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)
			ctx := context.Background()

			mockRepo.On("Update", ctx, int64(7), mock.Anything, fixedNow).Return(nil, tt.err)

			_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 7, Patch: domain.Patch{Email: domain.Some("other@example.com")}})

			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUpdateUser_EmptyPatchStillTouches(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("Update", ctx, int64(7), domain.Patch{}, fixedNow).Return(patched(domain.Patch{}), nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 7})
	require.NoError(t, err)
	assert.NotNil(t, resp.UpdatedAt)
	mockRepo.AssertExpectations(t)
}

// ==================== DELETE USER TESTS ====================

func TestDeleteUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	u := existingUser()
	mockRepo.On("GetByID", ctx, int64(7)).Return(u, nil)
	mockRepo.On("Delete", ctx, u).Return(nil)

	assert.NoError(t, uc.DeleteUser(ctx, DeleteUserRequest{ID: 7}))
	mockRepo.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(7)).Return(nil, apperrors.ErrUserNotFound)

	assert.ErrorIs(t, uc.DeleteUser(ctx, DeleteUserRequest{ID: 7}), apperrors.ErrUserNotFound)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteUser_InvalidID(t *testing.T) {
	uc, _ := setupTestUsecase(t)

	requireValidationError(t, uc.DeleteUser(context.Background(), DeleteUserRequest{ID: -1}), "id")
}

// ==================== STORAGE-BACKED TESTS ====================

func setupStoreUsecase(t *testing.T) *Usecase {
	t.Helper()

	log := zaptest.NewLogger(t)
	cfg := config.DatabaseConfig{
		URL:         "sqlite:///" + filepath.Join(t.TempDir(), "users.db"),
		AutoMigrate: true,
	}
	db, err := gormstore.Connect(context.Background(), cfg, nil, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return New(gormstore.NewUserRepo(db, log), log)
}

func TestCreateUser_ConcurrentSameEmail(t *testing.T) {
	uc := setupStoreUsecase(t)
	ctx := context.Background()

	const callers = 10
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.CreateUser(ctx, CreateUserRequest{Email: "race@example.com", FullName: "Racer"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, succeeded)

	list, err := uc.ListUsers(ctx, ListUsersRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Pagination.Total)
}

func TestListUsers_StableOrderAndTotal(t *testing.T) {
	uc := setupStoreUsecase(t)
	ctx := context.Background()

	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		_, err := uc.CreateUser(ctx, CreateUserRequest{Email: email, FullName: "Some One"})
		require.NoError(t, err)
	}

	first, err := uc.ListUsers(ctx, ListUsersRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	second, err := uc.ListUsers(ctx, ListUsersRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	again, err := uc.ListUsers(ctx, ListUsersRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), first.Pagination.Total)
	assert.Equal(t, int64(3), second.Pagination.Total)
	assert.Equal(t, int64(2), first.Pagination.TotalPages)
	require.Len(t, first.Users, 2)
	require.Len(t, second.Users, 1)
	assert.Equal(t, "c@example.com", first.Users[0].Email)
	assert.Less(t, first.Users[1].ID, second.Users[0].ID)
	assert.Equal(t, first.Users, again.Users)
}

func TestUpdateUser_BioOnlyPersists(t *testing.T) {
	uc := setupStoreUsecase(t)
	ctx := context.Background()

	created, err := uc.CreateUser(ctx, CreateUserRequest{Email: "bio@example.com", FullName: "Bio Person"})
	require.NoError(t, err)

	first, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Patch: domain.Patch{Bio: domain.Some("one")}})
	require.NoError(t, err)
	second, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Patch: domain.Patch{Bio: domain.Some("two")}})
	require.NoError(t, err)

	got, err := uc.GetUser(ctx, GetUserRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "bio@example.com", got.Email)
	assert.Equal(t, "Bio Person", got.FullName)
	assert.Equal(t, "two", *got.Bio)
	assert.True(t, first.UpdatedAt.After(created.CreatedAt))
	assert.True(t, second.UpdatedAt.After(*first.UpdatedAt))
}

// interleavingRepository lets a competing rename commit after the service
// has started its update but before the service's write reaches storage.
type interleavingRepository struct {
	Repository
	once   sync.Once
	rename func()
}

func (r *interleavingRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := r.Repository.GetByID(ctx, id)
	r.once.Do(r.rename)
	return u, err
}

func (r *interleavingRepository) Update(ctx context.Context, id int64, patch domain.Patch, now time.Time) (*domain.User, error) {
	r.once.Do(r.rename)
	return r.Repository.Update(ctx, id, patch, now)
}

func TestUpdateUser_ConcurrentUpdateOfOtherFieldSurvives(t *testing.T) {
	store := setupStoreUsecase(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, CreateUserRequest{Email: "alice@example.com", FullName: "Alice Smith"})
	require.NoError(t, err)

	repo := &interleavingRepository{Repository: store.repo}
	repo.rename = func() {
		_, err := store.UpdateUser(ctx, UpdateUserRequest{
			ID:    created.ID,
			Patch: domain.Patch{FullName: domain.Some("Alice Renamed")},
		})
		require.NoError(t, err)
	}
	uc := New(repo, zaptest.NewLogger(t))

	_, err = uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Patch: domain.Patch{Bio: domain.Some("hello")}})
	require.NoError(t, err)

	got, err := store.GetUser(ctx, GetUserRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", got.FullName)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "hello", *got.Bio)
}

func TestUpdateUser_ConcurrentDisjointUpdates(t *testing.T) {
	uc := setupStoreUsecase(t)
	ctx := context.Background()

	created, err := uc.CreateUser(ctx, CreateUserRequest{Email: "pair@example.com", FullName: "Pair Person"})
	require.NoError(t, err)

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Patch: domain.Patch{FullName: domain.Some("Renamed Person")}})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Patch: domain.Patch{Bio: domain.Some("busy bio")}})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	got, err := uc.GetUser(ctx, GetUserRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Person", got.FullName)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "busy bio", *got.Bio)
	assert.Equal(t, "pair@example.com", got.Email)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "John.Doe@example.com", NormalizeEmail(" John.Doe@Example.COM "))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
}
