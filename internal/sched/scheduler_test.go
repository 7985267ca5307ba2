// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/mirefall/mirefall/internal/core"
)

func TestScheduler_AfterFires(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	defer s.Shutdown()

	owner := core.NewULID()
	fired := make(chan struct{})
	s.After(owner, 5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	// Fired callbacks are removed from the owner index.
	assert.Eventually(t, func() bool { return s.Pending(owner) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestScheduler_CancelAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	defer s.Shutdown()

	owner := core.NewULID()
	other := core.NewULID()
	var fired atomic.Int32

	for range 3 {
		s.After(owner, 50*time.Millisecond, func() { fired.Add(1) })
	}
	otherFired := make(chan struct{})
	s.After(other, 20*time.Millisecond, func() { close(otherFired) })

	cancelled := s.CancelAll(owner)
	assert.Equal(t, 3, cancelled)
	assert.Equal(t, 0, s.Pending(owner))

	// Other owners are untouched.
	select {
	case <-otherFired:
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated owner's callback was cancelled")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "cancelled callback fired")
}

func TestScheduler_CancelAllUnknownOwner(t *testing.T) {
	s := New()
	defer s.Shutdown()

	assert.Equal(t, 0, s.CancelAll(core.NewULID()))
}

func TestScheduler_ShutdownDropsNewWork(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	owner := core.NewULID()
	s.After(owner, time.Hour, func() {})
	s.Shutdown()

	assert.Equal(t, 0, s.Pending(owner))

	s.After(owner, time.Millisecond, func() { t.Error("callback ran after shutdown") })
	time.Sleep(20 * time.Millisecond)
}
