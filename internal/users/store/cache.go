package store

import (
	"context"
	"errors"
	"log/slog"

	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	"rolegate/pkg/platform/circuit"
	"rolegate/pkg/platform/sentinel"
	"rolegate/pkg/requestcontext"
)

// UserCache holds resolved identities. Get returns sentinel.ErrNotFound on a miss.
//
// Every Invalidate advances the user's generation. Set stores the record only
// while the generation still equals the one read before the record was loaded,
// so a load racing a committed mutation cannot repopulate the old record.
type UserCache interface {
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	Generation(ctx context.Context, userID id.UserID) (uint64, error)
	Set(ctx context.Context, user *models.User, generation uint64) error
	Invalidate(ctx context.Context, userID id.UserID) error
}

// Finder loads users by id.
type Finder interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

// CachedFinder reads through cache and falls back to next. Cache failures are
// logged and never fail the lookup.
type CachedFinder struct {
	next    Finder
	cache   UserCache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type CachedFinderOption func(*CachedFinder)

// WithBreaker skips the cache while b is open.
func WithBreaker(b *circuit.Breaker) CachedFinderOption {
	return func(f *CachedFinder) {
		f.breaker = b
	}
}

func NewCachedFinder(next Finder, cache UserCache, logger *slog.Logger, opts ...CachedFinderOption) *CachedFinder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &CachedFinder{next: next, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *CachedFinder) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	var generation uint64
	useCache := f.allow()
	if useCache {
		cached, err := f.cache.Get(ctx, userID)
		if err == nil {
			f.record(ctx, nil)
			return cached, nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			generation, err = f.cache.Generation(ctx, userID)
		}
		if err != nil {
			f.logger.WarnContext(ctx, "identity cache read failed",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			f.record(ctx, err)
			useCache = false
		} else {
			f.record(ctx, nil)
		}
	}

	user, err := f.next.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !useCache {
		return user, nil
	}
	if err := f.cache.Set(ctx, user, generation); err != nil {
		f.logger.WarnContext(ctx, "identity cache write failed",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		f.record(ctx, err)
	}
	return user, nil
}

func (f *CachedFinder) allow() bool {
	return f.breaker == nil || f.breaker.Allow()
}

// record feeds a cache call result to the breaker and logs transitions.
func (f *CachedFinder) record(ctx context.Context, err error) {
	if f.breaker == nil {
		return
	}
	var change circuit.Change
	if err != nil {
		change = f.breaker.RecordFailure()
	} else {
		change = f.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		f.logger.WarnContext(ctx, "identity cache circuit opened, reading from store only",
			"breaker", f.breaker.Name(),
		)
	case change.Closed:
		f.logger.InfoContext(ctx, "identity cache circuit closed",
			"breaker", f.breaker.Name(),
		)
	}
}
