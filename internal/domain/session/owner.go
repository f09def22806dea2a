package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrOwnerStopped is returned by Do once the owner goroutine has exited
var ErrOwnerStopped = errors.New("session owner stopped")

type job struct {
	fn     func(*Session) error
	result chan error
}

// Owner runs every mutation of a session on one goroutine, so callers on
// other goroutines never mutate the registries concurrently. Reads that
// only need a consistent view may go through Do as well.
type Owner struct {
	session *Session
	jobs    chan job
	done    chan struct{}
}

// NewOwner wraps s. Nothing runs until Run is called.
func NewOwner(s *Session) *Owner {
	return &Owner{
		session: s,
		jobs:    make(chan job),
		done:    make(chan struct{}),
	}
}

// Session returns the owned session
func (o *Owner) Session() *Session { return o.session }

// Run executes submitted functions one at a time until ctx is cancelled.
// A panicking function fails its own Do call and does not stop the loop.
func (o *Owner) Run(ctx context.Context) error {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-o.jobs:
			j.result <- o.execute(j.fn)
		}
	}
}

func (o *Owner) execute(fn func(*Session) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in session operation: %v", p)
			o.session.logger.Error("Recovered panic in session operation", zap.Any("panic", p))
		}
	}()
	return fn(o.session)
}

// Do runs fn on the owner goroutine and waits for its result. ctx only
// bounds the wait for the owner to accept fn; once accepted, fn runs to
// completion and its result is returned.
func (o *Owner) Do(ctx context.Context, fn func(*Session) error) error {
	j := job{fn: fn, result: make(chan error, 1)}

	select {
	case o.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrOwnerStopped
	}
	return <-j.result
}
