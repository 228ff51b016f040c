// Package pool keeps a fixed set of expensive remote handles and lends them
// out one trial at a time.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultRetries is how many times Acquire looks for a free handle.
	DefaultRetries = 5
	// DefaultAttemptWait bounds the wait for a release between two attempts.
	DefaultAttemptWait = 100 * time.Millisecond
)

var (
	ErrPoolExhausted = errors.New("pool: cannot acquire handle from pool")
	ErrNotActive     = errors.New("pool: handle is not checked out")
	ErrClosed        = errors.New("pool: closed")
)

// Factory opens and closes the handles kept by a Pool. Open must return a
// distinct value on every call.
type Factory[H comparable] interface {
	Open(ctx context.Context) (H, error)
	Close(h H) error
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Capacity  int
	Available int
	Active    int

	// Attempts counts every look at the available set made by Acquire.
	Attempts uint64
	// Exhausted counts Acquire calls that gave up with ErrPoolExhausted.
	Exhausted uint64
}

type Option func(*options)

type options struct {
	retries     int
	attemptWait time.Duration
	observer    func(Stats)
}

// WithRetries sets the number of acquisition attempts. Values below one are
// ignored.
func WithRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithAttemptWait sets how long Acquire waits for a release before the next
// attempt.
func WithAttemptWait(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.attemptWait = d
		}
	}
}

// WithObserver registers fn to be called with fresh Stats after every change
// of pool membership. fn runs with the pool lock held and must not call back
// into the pool.
func WithObserver(fn func(Stats)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// Pool lends out a fixed number of handles. Every handle is at all times in
// exactly one of the available and active sets.
type Pool[H comparable] struct {
	factory Factory[H]
	opts    options

	mu        sync.Mutex
	capacity  int
	available []H
	active    map[H]struct{}
	released  chan struct{}
	closed    bool
	attempts  uint64
	exhausted uint64
}

// New opens size handles through factory. If any handle fails to open, the
// ones already opened are closed and the factory error is returned.
func New[H comparable](ctx context.Context, size int, factory Factory[H], opts ...Option) (*Pool[H], error) {
	if size < 1 {
		return nil, fmt.Errorf("pool: size must be at least 1, got %d", size)
	}

	o := options{
		retries:     DefaultRetries,
		attemptWait: DefaultAttemptWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[H]{
		factory:   factory,
		opts:      o,
		capacity:  size,
		available: make([]H, 0, size),
		active:    make(map[H]struct{}, size),
		released:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		h, err := factory.Open(ctx)
		if err != nil {
			var closeErrs []error
			for _, opened := range p.available {
				closeErrs = append(closeErrs, factory.Close(opened))
			}
			openErr := fmt.Errorf("pool: open handle %d of %d: %w", i+1, size, err)
			return nil, errors.Join(append([]error{openErr}, closeErrs...)...)
		}
		p.available = append(p.available, h)
	}

	p.mu.Lock()
	p.notifyLocked()
	p.mu.Unlock()
	return p, nil
}

// Acquire checks out a handle. When none is free it waits for a release, at
// most the configured attempt wait per attempt, and gives up with
// ErrPoolExhausted once every attempt has found the pool empty.
func (p *Pool[H]) Acquire(ctx context.Context) (H, error) {
	var zero H
	for attempt := 1; attempt <= p.opts.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return zero, ErrClosed
		}
		p.attempts++
		if n := len(p.available); n > 0 {
			h := p.available[n-1]
			p.available = p.available[:n-1]
			p.active[h] = struct{}{}
			p.notifyLocked()
			p.mu.Unlock()
			return h, nil
		}
		released := p.released
		p.mu.Unlock()

		if attempt == p.opts.retries {
			break
		}

		timer := time.NewTimer(p.opts.attemptWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-released:
		case <-timer.C:
		}
		timer.Stop()
	}

	p.mu.Lock()
	p.exhausted++
	p.mu.Unlock()
	return zero, ErrPoolExhausted
}

// Release returns a checked out handle. Releasing a handle that is not
// checked out is a caller bug and reported as ErrNotActive.
func (p *Pool[H]) Release(h H) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.active[h]; !ok {
		return ErrNotActive
	}
	delete(p.active, h)
	p.available = append(p.available, h)

	close(p.released)
	p.released = make(chan struct{})
	p.notifyLocked()
	return nil
}

// Shutdown closes every handle, checked out or not. The pool cannot be used
// afterwards.
func (p *Pool[H]) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true

	handles := make([]H, 0, p.capacity)
	handles = append(handles, p.available...)
	for h := range p.active {
		handles = append(handles, h)
	}
	p.available = nil
	p.active = map[H]struct{}{}
	close(p.released)
	p.notifyLocked()
	p.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := p.factory.Close(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool[H]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool[H]) Capacity() int {
	return p.capacity
}

func (p *Pool[H]) statsLocked() Stats {
	return Stats{
		Capacity:  p.capacity,
		Available: len(p.available),
		Active:    len(p.active),
		Attempts:  p.attempts,
		Exhausted: p.exhausted,
	}
}

func (p *Pool[H]) notifyLocked() {
	if p.opts.observer != nil {
		p.opts.observer(p.statsLocked())
	}
}
