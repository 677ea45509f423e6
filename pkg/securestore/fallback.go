package securestore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

// Fallback tries a primary Store and falls back to a secondary one.
// Safe for concurrent use if both backends are.
type Fallback struct {
	primary  Store
	fallback Store
	cache    *secretCache
	logger   *slog.Logger
}

// Option configures a Fallback.
type Option func(*Fallback)

func WithLogger(l *slog.Logger) Option {
	return func(f *Fallback) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithCacheSize bounds the number of cached values.
func WithCacheSize(n int) Option {
	return func(f *Fallback) {
		f.cache = newSecretCache(n)
	}
}

func NewFallback(primary, fallback Store, opts ...Option) *Fallback {
	f := &Fallback{
		primary:  primary,
		fallback: fallback,
		cache:    newSecretCache(defaultCacheSize),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logger.Component("securestore"))
	return f
}

// Store writes to the primary backend, or to the fallback when the primary
// fails. A value left in the fallback is always at least as new as the
// primary's: when the stale fallback copy cannot be removed it is
// overwritten instead.
func (f *Fallback) Store(ctx context.Context, key, value string) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	f.cache.remove(key)

	primaryErr := f.primary.Store(ctx, key, value)
	if primaryErr == nil {
		if err := f.fallback.Remove(ctx, key); err != nil {
			if serr := f.fallback.Store(ctx, key, value); serr != nil {
				f.logger.ErrorContext(ctx, "stale fallback copy left behind",
					logger.StoreKey(key), logger.Error(errors.Join(err, serr)))
				return errors.Join(ErrStaleCopy, err, serr)
			}
		}
		f.cache.put(key, value)
		return nil
	}

	f.logger.WarnContext(ctx, "primary secure store failed, using fallback",
		logger.StoreKey(key), logger.Error(primaryErr))

	if err := f.fallback.Store(ctx, key, value); err != nil {
		return errors.Join(primaryErr, err)
	}
	f.discard(ctx, f.primary, key)
	f.cache.put(key, value)
	return nil
}

// Retrieve returns the cached value, then the fallback's, then the
// primary's. A value found in the fallback is moved to the primary when the
// primary accepts it.
func (f *Fallback) Retrieve(ctx context.Context, key string) (string, error) {
	if err := checkKey(ctx, key); err != nil {
		return "", err
	}
	if v, ok := f.cache.get(key); ok {
		return v, nil
	}

	v, fallbackErr := f.fallback.Retrieve(ctx, key)
	if fallbackErr == nil {
		f.promote(ctx, key, v)
		f.cache.put(key, v)
		return v, nil
	}
	if !errors.Is(fallbackErr, ErrNotFound) {
		f.logger.WarnContext(ctx, "fallback secure store read failed, using primary",
			logger.StoreKey(key), logger.Error(fallbackErr))
	}

	v, primaryErr := f.primary.Retrieve(ctx, key)
	switch {
	case primaryErr == nil:
		f.cache.put(key, v)
		return v, nil
	case errors.Is(primaryErr, ErrNotFound) && errors.Is(fallbackErr, ErrNotFound):
		return "", ErrNotFound
	case errors.Is(fallbackErr, ErrNotFound):
		return "", primaryErr
	case errors.Is(primaryErr, ErrNotFound):
		return "", fallbackErr
	default:
		return "", errors.Join(primaryErr, fallbackErr)
	}
}

// Remove deletes the key from both backends. It fails only when neither
// backend could be reached.
func (f *Fallback) Remove(ctx context.Context, key string) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	f.cache.remove(key)

	primaryErr := f.primary.Remove(ctx, key)
	fallbackErr := f.fallback.Remove(ctx, key)
	if primaryErr != nil && fallbackErr != nil {
		return errors.Join(primaryErr, fallbackErr)
	}
	if primaryErr != nil {
		f.logger.WarnContext(ctx, "primary secure store remove failed", logger.StoreKey(key), logger.Error(primaryErr))
	}
	if fallbackErr != nil {
		f.logger.WarnContext(ctx, "fallback secure store remove failed", logger.StoreKey(key), logger.Error(fallbackErr))
	}
	return nil
}

// Purge empties the in-memory cache.
func (f *Fallback) Purge() {
	f.cache.clear()
}

// promote copies a fallback value into the primary and drops the fallback
// copy. Failures keep the value where it is.
func (f *Fallback) promote(ctx context.Context, key, value string) {
	if err := f.primary.Store(ctx, key, value); err != nil {
		f.logger.DebugContext(ctx, "fallback value not moved to primary", logger.StoreKey(key), logger.Error(err))
		return
	}
	f.discard(ctx, f.fallback, key)
}

func (f *Fallback) discard(ctx context.Context, s Store, key string) {
	if err := s.Remove(ctx, key); err != nil {
		f.logger.DebugContext(ctx, "stale secure store copy not removed", logger.StoreKey(key), logger.Error(err))
	}
}
