package engine

import (
	"sync"

	"github.com/mangavault/core/pkg/events"
)

// stateBox is the per-task "latest-wins broadcast" control channel spec §9
// describes: Pause/Resume/Cancel are expressed as state writes, not queued
// messages, so every waiter always observes the most recent value and
// wake-ups are coalesced rather than queued.
type stateBox struct {
	mu      sync.Mutex
	current events.TaskStatus
	wake    chan struct{}
}

func newStateBox(initial events.TaskStatus) *stateBox {
	return &stateBox{current: initial, wake: make(chan struct{})}
}

// Set records a new state and wakes every current waiter.
func (s *stateBox) Set(state events.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = state
	close(s.wake)
	s.wake = make(chan struct{})
}

// Get returns the current state.
func (s *stateBox) Get() events.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait returns a channel that closes the next time Set is called. Callers
// should re-check Get after it fires, since by then a further Set may
// already have happened.
func (s *stateBox) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wake
}
