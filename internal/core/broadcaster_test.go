// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package core

import (
	"bytes"
	"testing"
)

func newMapSession(sm *SessionManager, name string, mapID int) (*Session, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	s := NewSession(buf)
	s.Bind(testCharacter(name, mapID))
	sm.Add(s)
	return s, buf
}

func TestBroadcaster_MapScope(t *testing.T) {
	sm := NewSessionManager()
	b := NewBroadcaster(sm)

	_, buf1 := newMapSession(sm, "A", 1)
	_, buf2 := newMapSession(sm, "B", 1)
	_, buf3 := newMapSession(sm, "C", 2)

	b.Broadcast(MapScope(1), "eff 5")

	if buf1.String() != "eff 5\n" || buf2.String() != "eff 5\n" {
		t.Error("map members did not receive broadcast")
	}
	if buf3.Len() != 0 {
		t.Error("session on another map received broadcast")
	}
}

func TestBroadcaster_MapExceptSender(t *testing.T) {
	sm := NewSessionManager()
	b := NewBroadcaster(sm)

	sender, senderBuf := newMapSession(sm, "A", 1)
	_, otherBuf := newMapSession(sm, "B", 1)

	b.Broadcast(MapExcept(1, sender.ID), "eff 5")

	if senderBuf.Len() != 0 {
		t.Error("sender received its own excluded broadcast")
	}
	if otherBuf.String() != "eff 5\n" {
		t.Error("other session did not receive broadcast")
	}
}

func TestBroadcaster_OnlyTarget(t *testing.T) {
	sm := NewSessionManager()
	b := NewBroadcaster(sm)

	target, targetBuf := newMapSession(sm, "A", 1)
	_, otherBuf := newMapSession(sm, "B", 1)

	b.Broadcast(To(target.ID), "sr 3")

	if targetBuf.String() != "sr 3\n" {
		t.Error("target did not receive packet")
	}
	if otherBuf.Len() != 0 {
		t.Error("non-target received targeted packet")
	}
}

func TestBroadcaster_DeadSessionIsNoop(t *testing.T) {
	sm := NewSessionManager()
	b := NewBroadcaster(sm)

	s, buf := newMapSession(sm, "A", 1)
	s.Invalidate()

	b.Broadcast(MapScope(1), "eff 5")
	b.Broadcast(To(s.ID), "sr 3")

	if buf.Len() != 0 {
		t.Errorf("dead session received %q", buf.String())
	}
}

func TestBroadcaster_UnboundSessionSkipped(t *testing.T) {
	sm := NewSessionManager()
	b := NewBroadcaster(sm)

	buf := &bytes.Buffer{}
	sm.Add(NewSession(buf)) // no character bound yet

	b.Broadcast(MapScope(1), "eff 5")
	if buf.Len() != 0 {
		t.Error("session without character received map broadcast")
	}
}
