package app

import (
	"context"
	"fmt"
	"sync"

	logx "salonbot/pkg/logx"
)

// supervisor owns the app's background goroutines: each one gets the shared
// run context, panics are converted to errors, and the first fatal error
// cancels everything.
type supervisor struct {
	log    logx.Logger
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mu  sync.Mutex
	err error
}

func newSupervisor(parent context.Context, log logx.Logger) *supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &supervisor{log: log, ctx: ctx, cancel: cancel}
}

func (s *supervisor) Context() context.Context { return s.ctx }

func (s *supervisor) Cancel() { s.cancel() }

func (s *supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Go runs fn until it returns or the run context is cancelled. A non-nil
// error (or a panic) is recorded as the supervisor's first error and
// cancels the run context.
func (s *supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.fail(name, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
			s.fail(name, err)
		}
	}()
}

func (s *supervisor) fail(name string, err error) {
	s.log.Error("background goroutine failed", logx.String("name", name), logx.Err(err))
	s.mu.Lock()
	if s.err == nil {
		s.err = fmt.Errorf("%s: %w", name, err)
	}
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every supervised goroutine has returned or ctx expires.
func (s *supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
