package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"summarai/internal/apperr"
	"summarai/internal/logging"
)

// Resilient delegates to a primary store until it fails once, then serves
// every call from an in-memory mirror for the rest of the process. The
// mirror holds everything read or written through the wrapper, so data
// already seen survives the switch. A canceled or expired context is the
// caller's failure, not the store's: it is returned as is and the primary
// stays in use. Callers never receive any other error except ErrNotFound.
type Resilient struct {
	primary Store
	mirror  *Memory
	logger  *zap.Logger

	mu       sync.RWMutex
	degraded bool
}

// NewResilient wraps primary.
func NewResilient(primary Store, logger *zap.Logger) *Resilient {
	return &Resilient{
		primary: primary,
		mirror:  NewMemory(),
		logger:  logging.OrNop(logger),
	}
}

// Degraded reports whether the primary store has been abandoned.
func (r *Resilient) Degraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

func (r *Resilient) usePrimary() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.degraded
}

func (r *Resilient) degrade(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded {
		return
	}
	r.degraded = true
	r.logger.Warn("storage unavailable, continuing in memory",
		zap.String("op", op),
		zap.Error(apperr.Storage(op, err)))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resilient) Get(ctx context.Context, key string) (string, error) {
	if r.usePrimary() {
		v, err := r.primary.Get(ctx, key)
		switch {
		case err == nil:
			_ = r.mirror.Set(ctx, key, v)
			return v, nil
		case errors.Is(err, ErrNotFound):
			_ = r.mirror.Remove(ctx, key)
			return "", ErrNotFound
		case isContextErr(err):
			return "", err
		default:
			r.degrade("get", err)
		}
	}
	return r.mirror.Get(ctx, key)
}

func (r *Resilient) Set(ctx context.Context, key, value string) error {
	if r.usePrimary() {
		if err := r.primary.Set(ctx, key, value); err != nil {
			if isContextErr(err) {
				return err
			}
			r.degrade("set", err)
		}
	}
	return r.mirror.Set(ctx, key, value)
}

func (r *Resilient) Remove(ctx context.Context, key string) error {
	if r.usePrimary() {
		if err := r.primary.Remove(ctx, key); err != nil {
			if isContextErr(err) {
				return err
			}
			r.degrade("remove", err)
		}
	}
	return r.mirror.Remove(ctx, key)
}

func (r *Resilient) Keys(ctx context.Context, prefix string) ([]string, error) {
	if r.usePrimary() {
		keys, err := r.primary.Keys(ctx, prefix)
		if err == nil {
			return keys, nil
		}
		if isContextErr(err) {
			return nil, err
		}
		r.degrade("keys", err)
	}
	return r.mirror.Keys(ctx, prefix)
}

func (r *Resilient) Close() error {
	if err := r.primary.Close(); err != nil {
		r.logger.Warn("failed to close storage", zap.Error(err))
	}
	return nil
}
