package cached

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secure-user-api/internal/adapter/cache"
	"secure-user-api/internal/adapter/db/gormstore"
	"secure-user-api/internal/config"
	domain "secure-user-api/internal/domain/user"
	"secure-user-api/internal/usecase/user"
	apperrors "secure-user-api/pkg/errors"
)

type fixture struct {
	repo  *CachedUserRepository
	db    *gormstore.UserRepo
	cache *cache.RedisUserCache
	mr    *miniredis.Miniredis
}

func setup(t *testing.T) fixture {
	return setupWith(t, func(r user.Repository) user.Repository { return r })
}

// setupWith lets a test wrap the database repository the cache sits on.
func setupWith(t *testing.T, wrap func(user.Repository) user.Repository) fixture {
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

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dbRepo := gormstore.NewUserRepo(db, log)
	userCache := cache.NewRedisUserCache(client, time.Minute, log)
	return fixture{
		repo:  NewCachedUserRepository(wrap(dbRepo), userCache, log),
		db:    dbRepo,
		cache: userCache,
		mr:    mr,
	}
}

func createUser(t *testing.T, f fixture, email string) *domain.User {
	t.Helper()
	u, err := f.repo.Create(context.Background(), &domain.User{
		Email:     email,
		FullName:  "Cached User",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return u
}

func TestCachedUserRepository_GetByID_PopulatesCache(t *testing.T) {
	f := setup(t)
	u := createUser(t, f, "cache@example.com")

	assert.False(t, f.mr.Exists(cache.Key(u.ID)))

	got, err := f.repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "cache@example.com", got.Email)
	assert.True(t, f.mr.Exists(cache.Key(u.ID)))
}

func TestCachedUserRepository_UpdateRefreshesCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := createUser(t, f, "before@example.com")

	_, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, f.mr.Exists(cache.Key(u.ID)))

	updated, err := f.repo.Update(ctx, u.ID, domain.Patch{Email: domain.Some("after@example.com")}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "after@example.com", updated.Email)

	cached, err := f.cache.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "after@example.com", cached.Email)

	got, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "after@example.com", got.Email)
}

// racingReader serves a database read that was taken before a competing
// update committed, the way a slow cache-miss reader would.
type racingReader struct {
	user.Repository
	once sync.Once
	race func()
}

func (r *racingReader) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := r.Repository.GetByID(ctx, id)
	r.once.Do(r.race)
	return u, err
}

func TestCachedUserRepository_SlowReaderCannotCacheOldCopy(t *testing.T) {
	ctx := context.Background()

	reader := &racingReader{}
	f := setupWith(t, func(r user.Repository) user.Repository {
		reader.Repository = r
		return reader
	})
	u := createUser(t, f, "race@example.com")

	reader.race = func() {
		_, err := f.repo.Update(ctx, u.ID, domain.Patch{FullName: domain.Some("Renamed User")}, time.Now().UTC())
		require.NoError(t, err)
	}

	stale, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cached User", stale.FullName)

	got, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed User", got.FullName)
}

func TestCachedUserRepository_DeleteInvalidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := createUser(t, f, "gone@example.com")

	_, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(ctx, u))
	cached, err := f.cache.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	// A read that started before the delete must not bring the user back.
	require.NoError(t, f.cache.Set(ctx, u))
	cached, err = f.cache.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	_, err = f.repo.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCachedUserRepository_NotFoundIsNotCached(t *testing.T) {
	f := setup(t)

	_, err := f.repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.False(t, f.mr.Exists(cache.Key(404)))
}

func TestCachedUserRepository_RedisDownFallsBackToDatabase(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := createUser(t, f, "fallback@example.com")

	f.mr.Close()

	got, err := f.repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	updated, err := f.repo.Update(ctx, u.ID, domain.Patch{FullName: domain.Some("Still Works")}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "Still Works", updated.FullName)
}

func TestCachedUserRepository_ConcurrentReadsGetCopies(t *testing.T) {
	f := setup(t)
	u := createUser(t, f, "many@example.com")

	var wg sync.WaitGroup
	results := make([]*domain.User, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.repo.GetByID(context.Background(), u.ID)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	results[0].FullName = "mutated"
	for _, r := range results[1:] {
		require.NotNil(t, r)
		assert.Equal(t, "Cached User", r.FullName)
	}
}

func TestCachedUserRepository_DelegatesListAndEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := createUser(t, f, "list@example.com")

	users, total, err := f.repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, users, 1)

	got, err := f.repo.GetByEmail(ctx, "list@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}
