package cached

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"secure-user-api/internal/adapter/cache"
	domain "secure-user-api/internal/domain/user"
	"secure-user-api/internal/usecase/user"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
// Cache failures are logged and never fail a request.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

var _ user.Repository = (*CachedUserRepository)(nil)

// Create delegates to the DB repository.
func (r *CachedUserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.dbRepo.Create(ctx, u)
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	cachedUser, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if cachedUser != nil {
		return cachedUser, nil
	}

	// Cache miss: single-flight keeps concurrent misses from stampeding the database
	result, err, _ := r.group.Do(cache.Key(id), func() (any, error) {
		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := r.cache.Set(ctx, u); err != nil {
			r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may mutate the user they get back, so hand each one its own copy.
	u := *result.(*domain.User)
	return &u, nil
}

// GetByEmail delegates to the DB repository. Uniqueness checks must see storage, never the cache.
func (r *CachedUserRepository) GetByEmail(ctx context.Context, email string, excludeID int64) (*domain.User, error) {
	return r.dbRepo.GetByEmail(ctx, email, excludeID)
}

// List delegates to the DB repository.
func (r *CachedUserRepository) List(ctx context.Context, offset, limit int64) ([]domain.User, int64, error) {
	return r.dbRepo.List(ctx, offset, limit)
}

// Update updates the user in DB and caches the result. The cache keeps
// whichever copy is newest, so a slower reader cannot put an older copy back.
func (r *CachedUserRepository) Update(ctx context.Context, id int64, patch domain.Patch, now time.Time) (*domain.User, error) {
	updated, err := r.dbRepo.Update(ctx, id, patch, now)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, updated); err != nil {
		r.log.Warn("failed to refresh cache after update", zap.Int64("id", id), zap.Error(err))
	}
	out := *updated
	return &out, nil
}

// Delete deletes the user from DB and tombstones its cache entry.
func (r *CachedUserRepository) Delete(ctx context.Context, u *domain.User) error {
	if err := r.dbRepo.Delete(ctx, u); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, u.ID); err != nil {
		r.log.Warn("failed to invalidate cache after delete", zap.Int64("id", u.ID), zap.Error(err))
	}
	return nil
}
