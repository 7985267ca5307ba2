// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package sched provides delayed callbacks with per-owner cancellation.
// It is the only source of time-based suspension in the server: handlers
// never sleep, they register a future callback here.
package sched

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Scheduler issues delayed callbacks. Every callback is tagged with the
// owner token (a session's connection id) that registered it, so a
// disconnect can invalidate outstanding work without scanning a global
// list.
type Scheduler struct {
	mu     sync.Mutex
	owners map[ulid.ULID]map[int64]*time.Timer
	nextID int64
	closed bool
}

// New creates a scheduler.
func New() *Scheduler {
	return &Scheduler{
		owners: make(map[ulid.ULID]map[int64]*time.Timer),
	}
}

// After registers fn to run once d has elapsed, tagged with owner.
// The callback runs on the timer's goroutine, never blocking the
// caller. Callbacks registered after Shutdown are dropped.
func (s *Scheduler) After(owner ulid.ULID, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		slog.Debug("callback dropped: scheduler shut down",
			"owner", owner.String(),
		)
		return
	}

	s.nextID++
	id := s.nextID

	timers, ok := s.owners[owner]
	if !ok {
		timers = make(map[int64]*time.Timer)
		s.owners[owner] = timers
	}

	timers[id] = time.AfterFunc(d, func() {
		s.remove(owner, id)
		fn()
	})
}

// CancelAll stops every outstanding callback registered by owner.
// Returns the number of callbacks cancelled. Callbacks already firing
// are not interrupted; they are expected to detect owner invalidity
// themselves.
func (s *Scheduler) CancelAll(owner ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	timers, ok := s.owners[owner]
	if !ok {
		return 0
	}
	cancelled := 0
	for _, t := range timers {
		if t.Stop() {
			cancelled++
		}
	}
	delete(s.owners, owner)
	return cancelled
}

// Pending returns the number of outstanding callbacks for owner.
func (s *Scheduler) Pending(owner ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owners[owner])
}

// Shutdown cancels all outstanding callbacks for all owners. The
// scheduler accepts no further work afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for owner, timers := range s.owners {
		for _, t := range timers {
			t.Stop()
		}
		delete(s.owners, owner)
	}
}

func (s *Scheduler) remove(owner ulid.ULID, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timers, ok := s.owners[owner]
	if !ok {
		return
	}
	delete(timers, id)
	if len(timers) == 0 {
		delete(s.owners, owner)
	}
}
