// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package core

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// ScopeKind selects which sessions receive a broadcast.
type ScopeKind uint8

// Broadcast scopes.
const (
	EveryoneInMap ScopeKind = iota
	EveryoneExceptSender
	OnlyTarget
)

func (k ScopeKind) String() string {
	switch k {
	case EveryoneInMap:
		return "map"
	case EveryoneExceptSender:
		return "map_except_sender"
	case OnlyTarget:
		return "target"
	default:
		return "unknown"
	}
}

// Scope qualifies a broadcast with its spatial and sender context.
type Scope struct {
	Kind   ScopeKind
	MapID  int
	Sender ulid.ULID // connection id excluded by EveryoneExceptSender
	Target ulid.ULID // connection id addressed by OnlyTarget
}

// MapScope addresses every live session on a map.
func MapScope(mapID int) Scope {
	return Scope{Kind: EveryoneInMap, MapID: mapID}
}

// MapExcept addresses every live session on a map except the sender.
func MapExcept(mapID int, sender ulid.ULID) Scope {
	return Scope{Kind: EveryoneExceptSender, MapID: mapID, Sender: sender}
}

// To addresses a single session by connection id.
func To(target ulid.ULID) Scope {
	return Scope{Kind: OnlyTarget, Target: target}
}

// Broadcaster fans an outbound packet out to the sessions selected by a
// scope. It is a stateless projection over session membership: the set
// of recipients is resolved at call time, never cached.
type Broadcaster struct {
	sessions *SessionManager
}

// NewBroadcaster creates a broadcaster over the given session manager.
func NewBroadcaster(sessions *SessionManager) *Broadcaster {
	return &Broadcaster{sessions: sessions}
}

// Broadcast delivers packet to every session the scope selects.
// Delivery to a session that disconnected between resolution and write
// is a no-op.
func (b *Broadcaster) Broadcast(scope Scope, packet string) {
	switch scope.Kind {
	case OnlyTarget:
		if s := b.sessions.Get(scope.Target); s != nil {
			s.Send(packet)
		}
	case EveryoneInMap, EveryoneExceptSender:
		for _, s := range b.sessions.List() {
			if scope.Kind == EveryoneExceptSender && s.ID == scope.Sender {
				continue
			}
			char := s.Character()
			if char == nil || char.MapID != scope.MapID {
				continue
			}
			s.Send(packet)
		}
	default:
		slog.Warn("broadcast with unknown scope kind",
			"kind", uint8(scope.Kind),
		)
	}
}
