// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

import (
	"sync"
	"time"

	"github.com/mirefall/mirefall/internal/content"
)

// SlotState is the lifecycle phase of one skill slot.
type SlotState uint8

// Slot states. A slot walks Idle -> Casting -> Resolving -> Cooldown ->
// Idle; disconnection while Casting short-circuits back to Idle.
const (
	StateIdle SlotState = iota
	StateCasting
	StateResolving
	StateCooldown
)

func (s SlotState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCasting:
		return "casting"
	case StateResolving:
		return "resolving"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// comboWindow is how long a combo chain stays warm between casts.
const comboWindow = 3 * time.Second

// cooldownLag is how far ahead of cooldown expiry a cast is still
// accepted. Client clocks drift by up to a tick against the server.
const cooldownLag = content.Tick

// Slot tracks the cast lifecycle of one equipped skill. It is mutated
// only by the owning session's worker and by scheduler callbacks that
// passed a liveness check, always under its own mutex.
type Slot struct {
	Skill *content.Skill

	mu      sync.Mutex
	state   SlotState
	lastUse time.Time
	readyAt time.Time
	combo   int
}

// NewSlot creates an idle slot for a skill.
func NewSlot(skill *content.Skill) *Slot {
	return &Slot{Skill: skill}
}

// State returns the current slot state.
func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUse returns when the current or previous cast began.
func (s *Slot) LastUse() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUse
}

// Combo returns the sequential hit counter.
func (s *Slot) Combo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combo
}

// BeginCast attempts the Idle -> Casting transition. A cast is accepted
// when the slot is Idle, or still marked Cooldown but within cooldownLag
// of expiry (the expiry callback can lag the wall clock, and the client
// can run slightly ahead of it). Concurrent use is never queued: a busy
// slot rejects.
func (s *Slot) BeginCast(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
	case StateCooldown:
		if now.Add(cooldownLag).Before(s.readyAt) {
			return false
		}
	default:
		return false
	}

	// Stale combo chains go cold before this cast counts.
	if !s.lastUse.IsZero() && now.Sub(s.lastUse) > comboWindow {
		s.combo = 0
	}
	s.state = StateCasting
	s.lastUse = now
	return true
}

// BeginResolve attempts the Casting -> Resolving transition. It fails
// if the slot was reset underneath the callback (disconnect race).
func (s *Slot) BeginResolve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCasting {
		return false
	}
	s.state = StateResolving
	return true
}

// FinishResolve moves Resolving -> Cooldown and returns when the
// cooldown expires: the declared cooldown duration counted from now,
// after the hits were applied. Counting from cast begin would shave the
// cast time off every cooldown.
func (s *Slot) FinishResolve(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCooldown
	s.readyAt = now.Add(s.Skill.CooldownDuration())
	return s.readyAt
}

// ExpireCooldown moves Cooldown -> Idle. Idempotent: expiring an
// already-idle slot is a no-op.
func (s *Slot) ExpireCooldown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCooldown {
		s.state = StateIdle
	}
}

// Reset forces the slot to Idle without side effects. Used when the
// owning session disconnects while the slot is mid-lifecycle.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.combo = 0
}

// AdvanceCombo updates the sequential hit counter for one resolution
// and returns the combo variant to use, if the counter landed on a
// breakpoint. A missed hit resets the chain, mirroring the original
// behavior that a whiff breaks a combo.
func (s *Slot) AdvanceCombo(missed bool) (content.Combo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if missed {
		s.combo = 0
		return content.Combo{}, false
	}
	s.combo++
	combo, ok := s.Skill.ComboAt(s.combo)
	if ok && s.combo == s.Skill.MaxComboHit() {
		s.combo = 0
	}
	return combo, ok
}
