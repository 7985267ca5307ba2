// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package core contains sessions, identity, and outbound fan-out.
package core

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ClassType identifies a character's combat class.
type ClassType uint8

// Character classes.
const (
	ClassAdventurer ClassType = iota
	ClassSwordsman
	ClassArcher
	ClassMage
)

func (c ClassType) String() string {
	switch c {
	case ClassAdventurer:
		return "adventurer"
	case ClassSwordsman:
		return "swordsman"
	case ClassArcher:
		return "archer"
	case ClassMage:
		return "mage"
	default:
		return "unknown"
	}
}

// Character is the mutable in-game state bound to a session.
// It is guarded by the owning Session's mutex: handlers running on the
// session worker and scheduler callbacks that passed a liveness check
// are the only writers.
type Character struct {
	ID       ulid.ULID
	Name     string
	Class    ClassType
	Level    int
	JobLevel int
	HP       int
	MaxHP    int
	MP       int
	MaxMP    int
	XP       int64
	JobXP    int64
	MapID    int
	X, Y     int16
	Sitting  bool
	Trading  bool
}

// CanFight reports whether the character may start a cast.
func (c *Character) CanFight() bool {
	return c.HP > 0 && !c.Sitting && !c.Trading
}

// Session represents one connected client and its server-side state.
// A session owns exactly one inbound command stream, consumed in order
// by a single worker; only that worker and validated scheduler
// callbacks mutate the session.
type Session struct {
	ID ulid.ULID // connection id

	mu   sync.Mutex
	char *Character
	out  io.Writer
	live atomic.Bool
}

// NewSession creates a live session writing outbound packets to out.
func NewSession(out io.Writer) *Session {
	s := &Session{
		ID:  NewULID(),
		out: out,
	}
	s.live.Store(true)
	return s
}

// Live reports whether the session is still connected. Scheduler
// callbacks must check this before touching session state.
func (s *Session) Live() bool {
	return s.live.Load()
}

// Bind attaches a character to the session after authentication.
func (s *Session) Bind(char *Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.char = char
}

// Character returns the bound character, or nil before authentication.
// The returned pointer is shared; callers mutate it only from the
// session worker or a validated callback (see WithCharacter).
func (s *Session) Character() *Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.char
}

// WithCharacter runs fn with the session lock held if a character is
// bound and the session is live. Returns false otherwise. Liveness is
// checked under the lock: once Invalidate has been observed by any
// lock holder, no later caller can mutate the character.
func (s *Session) WithCharacter(fn func(*Character)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live.Load() || s.char == nil {
		return false
	}
	fn(s.char)
	return true
}

// CharacterSnapshot copies the bound character under the session lock.
// Unlike WithCharacter it also works on an invalidated session, so
// teardown can capture the final state for the logout save after the
// session has been removed.
func (s *Session) CharacterSnapshot() (Character, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.char == nil {
		return Character{}, false
	}
	return *s.char, true
}

// Send writes one outbound packet line. Writes to a dead session are a
// no-op, not an error.
func (s *Session) Send(packet string) {
	if !s.live.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, packet+"\n"); err != nil {
		slog.Debug("failed to send packet",
			"conn_id", s.ID.String(),
			"error", err,
		)
	}
}

// Invalidate marks the session dead. Outstanding scheduled callbacks
// observe this and discard themselves.
func (s *Session) Invalidate() {
	s.live.Store(false)
}

// SessionManager tracks live sessions keyed by connection id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[ulid.ULID]*Session),
	}
}

// Add registers a session.
func (sm *SessionManager) Add(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.ID] = s
}

// Remove invalidates and deregisters a session. Returns an error if the
// session is unknown.
func (sm *SessionManager) Remove(id ulid.ULID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, exists := sm.sessions[id]
	if !exists {
		return oops.Code("SESSION_NOT_FOUND").
			With("conn_id", id.String()).
			Errorf("session not found for connection %s", id.String())
	}
	s.Invalidate()
	delete(sm.sessions, id)
	return nil
}

// Get returns a session by connection id, or nil if none exists.
func (sm *SessionManager) Get(id ulid.ULID) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// FindByCharacter returns the session owning the named character id,
// or nil if the character is not online.
func (sm *SessionManager) FindByCharacter(charID ulid.ULID) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, s := range sm.sessions {
		if char := s.Character(); char != nil && char.ID == charID {
			return s
		}
	}
	return nil
}

// List returns all live sessions. The slice is a snapshot; membership
// can change immediately after the call.
func (sm *SessionManager) List() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	result := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		result = append(result, s)
	}
	return result
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
