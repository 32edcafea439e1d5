// Package bridge models the host platform's readiness signal. Bootstrap
// waits on it before issuing any fetch; nothing else of the platform is used.
package bridge

import (
	"context"
	"errors"
	"sync"
)

// Bridge gates session start.
//
// WaitReady blocks until the platform is ready (nil), the platform failed
// (non-context error), or ctx is done (ctx.Err()). A platform that never
// becomes ready blocks until ctx ends; callers own the timeout policy.
type Bridge interface {
	WaitReady(ctx context.Context) error
}

// ErrAlreadyResolved is returned when a Latch is signalled twice.
var ErrAlreadyResolved = errors.New("bridge: already resolved")

// Latch is a one-shot readiness signal set by the host integration.
//
// Thread-safety: all methods are safe for concurrent use.
type Latch struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewLatch creates an unresolved latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Signal marks the platform ready.
func (l *Latch) Signal() error {
	return l.resolve(nil)
}

// Fail marks the platform as failed to initialise.
func (l *Latch) Fail(err error) error {
	if err == nil {
		err = errors.New("bridge: platform failed")
	}
	return l.resolve(err)
}

func (l *Latch) resolve(err error) error {
	resolved := false
	l.once.Do(func() {
		l.err = err
		close(l.done)
		resolved = true
	})
	if !resolved {
		return ErrAlreadyResolved
	}
	return nil
}

// Resolved reports whether Signal or Fail has been called.
func (l *Latch) Resolved() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// WaitReady implements Bridge.
func (l *Latch) WaitReady(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is a bridge that is always ready. Used headless, where no host
// platform exists.
type Ready struct{}

// WaitReady implements Bridge.
func (Ready) WaitReady(context.Context) error { return nil }

// Func adapts a function to Bridge.
type Func func(ctx context.Context) error

// WaitReady implements Bridge.
func (f Func) WaitReady(ctx context.Context) error { return f(ctx) }
