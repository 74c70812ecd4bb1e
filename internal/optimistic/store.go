// Package optimistic applies a local state change ahead of the backend
// confirming it, and reverts it with an explicit rollback transform when the
// backend call fails.
package optimistic

import (
	"context"
	"sync"
)

// Command is one optimistic mutation.
//
// Apply is the tentative local change. Send performs the backend call.
// Commit, if set, folds the confirmed result in once Send succeeds.
// Rollback, if set, undoes Apply when Send fails; it runs against whatever
// the state is at that point, so it must not assume nothing else changed.
type Command[S any] struct {
	Name     string
	Apply    func(S) S
	Send     func(ctx context.Context) error
	Commit   func(S) S
	Rollback func(S) S
}

// Store holds a state value shared between goroutines.
type Store[S any] struct {
	mu    sync.Mutex
	state S
	clone func(S) S
}

// NewStore creates a store. clone must return a copy that shares no mutable
// memory with its argument; Get hands out clones only.
func NewStore[S any](initial S, clone func(S) S) *Store[S] {
	return &Store[S]{state: initial, clone: clone}
}

// Get returns a copy of the current state.
func (s *Store[S]) Get() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(s.state)
}

// Replace swaps the whole state. Concurrent replacements are last-writer-wins.
func (s *Store[S]) Replace(next S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// Update applies fn to the state under the lock.
func (s *Store[S]) Update(fn func(S) S) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
}

// Refresh loads a full state with fetch and installs it. A result that
// arrives after ctx is done is discarded.
func (s *Store[S]) Refresh(ctx context.Context, fetch func(context.Context) (S, error)) error {
	next, err := fetch(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Replace(next)
	return nil
}

// Execute runs cmd: tentative apply, backend call, then commit or rollback.
// The Send error is returned unchanged.
func (s *Store[S]) Execute(ctx context.Context, cmd Command[S]) error {
	s.Update(cmd.Apply)

	if err := cmd.Send(ctx); err != nil {
		s.Update(cmd.Rollback)
		return err
	}

	s.Update(cmd.Commit)
	return nil
}
