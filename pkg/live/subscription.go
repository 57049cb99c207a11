// Package live provides cancellable snapshot subscriptions.
//
// A Subscription delivers whole snapshots, never deltas. Delivery is
// latest-value-wins: when the reader falls behind, the pending snapshot is
// replaced by the newer one, so a reader always converges on current state.
package live

import (
	"sync"
)

type Subscription[T any] struct {
	mu      sync.Mutex
	updates chan T
	closed  bool
	err     error
	cancel  func()
}

// New returns an open subscription. cancel runs once when the subscription
// is closed or failed and should stop whatever produces snapshots.
func New[T any](cancel func()) *Subscription[T] {
	return &Subscription[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
	}
}

// Updates is closed after Close or Fail.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Publish offers a snapshot, replacing any snapshot the reader has not
// consumed yet. It reports false once the subscription is closed.
func (s *Subscription[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
	return true
}

// Fail terminates the subscription with err. A snapshot already queued is
// still readable before Updates reports closed.
func (s *Subscription[T]) Fail(err error) {
	s.shutdown(err)
}

func (s *Subscription[T]) Close() {
	s.shutdown(nil)
}

func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription[T]) shutdown(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.updates)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
