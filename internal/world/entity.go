// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package world holds shared mutable world state: maps and the
// entities (monsters) living on them. Entity health mutations are
// serialized per entity so that death triggers rewards exactly once.
package world

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Entity is a targetable in-world actor. HP is monotonic
// non-increasing until death; all mutations happen under the entity's
// own mutex. Lock ordering: an entity lock is never held while taking
// a session or caster lock.
type Entity struct {
	ID    int64
	DefID int // monster definition id

	mu     sync.Mutex
	hp     int
	maxHP  int
	alive  bool
	x, y   int16
	target ulid.ULID // character id of the last attacker
}

// DamageResult reports the outcome of one serialized damage
// application.
type DamageResult struct {
	Remaining int
	Alive     bool
	// Died is true only for the single application that transitioned
	// the entity from alive to dead. Reward and loot hang off it.
	Died bool
}

// ApplyDamage subtracts dmg from the entity's HP, clamping at zero.
// Damage to an already-dead entity is a no-op with Died=false.
func (e *Entity) ApplyDamage(dmg int, attacker ulid.ULID) DamageResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.alive {
		return DamageResult{Remaining: 0, Alive: false, Died: false}
	}
	if dmg < 0 {
		dmg = 0
	}
	e.target = attacker
	if e.hp <= dmg {
		e.hp = 0
		e.alive = false
		return DamageResult{Remaining: 0, Alive: false, Died: true}
	}
	e.hp -= dmg
	return DamageResult{Remaining: e.hp, Alive: true, Died: false}
}

// HP returns the entity's current and maximum HP.
func (e *Entity) HP() (current, max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hp, e.maxHP
}

// Alive reports whether the entity is alive.
func (e *Entity) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}

// Position returns the entity's map coordinates.
func (e *Entity) Position() (x, y int16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.x, e.y
}

// HPPercent returns current HP as a 0-100 percentage of maximum, the
// form the outbound hit packet carries.
func (e *Entity) HPPercent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxHP == 0 {
		return 0
	}
	return e.hp * 100 / e.maxHP
}
