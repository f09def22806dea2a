package project

import (
	"context"
	"errors"
	"io"

	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/resilience"
)

// GuardedStore runs every call to a remote store through a circuit breaker
type GuardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

// Guard wraps store with a breaker built from settings. Missing projects,
// bad names and malformed payloads do not count as backend failures.
func Guard(store Store, settings resilience.Settings) *GuardedStore {
	if settings.IsFailure == nil {
		settings.IsFailure = IsBackendFailure
	}
	return &GuardedStore{
		store:   store,
		breaker: resilience.New("project-store", settings),
	}
}

// IsBackendFailure reports whether err points at the storage backend
// rather than the request
func IsBackendFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrUnsupportedNull),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Breaker exposes the breaker state
func (g *GuardedStore) Breaker() *resilience.Breaker { return g.breaker }

func (g *GuardedStore) Save(ctx context.Context, name string, p *Project) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.store.Save(ctx, name, p)
	})
}

func (g *GuardedStore) Load(ctx context.Context, name string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = g.store.Load(ctx, name)
		return err
	})
	return raw, err
}

func (g *GuardedStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		names, err = g.store.List(ctx)
		return err
	})
	return names, err
}

func (g *GuardedStore) Delete(ctx context.Context, name string) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.store.Delete(ctx, name)
	})
}

// Close closes the wrapped store if it holds resources
func (g *GuardedStore) Close() error {
	if c, ok := g.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
