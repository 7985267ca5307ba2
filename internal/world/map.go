// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package world

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Map is one spatial zone and the entities on it.
type Map struct {
	ID int

	mu       sync.RWMutex
	entities map[int64]*Entity
	nextID   int64
}

// NewMap creates an empty map.
func NewMap(id int) *Map {
	return &Map{
		ID:       id,
		entities: make(map[int64]*Entity),
	}
}

// Spawn places a new live entity on the map and returns it. Entity ids
// are assigned in ascending spawn order.
func (m *Map) Spawn(defID, maxHP int, x, y int16) *Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := &Entity{
		ID:    m.nextID,
		DefID: defID,
		hp:    maxHP,
		maxHP: maxHP,
		alive: true,
		x:     x,
		y:     y,
	}
	m.entities[e.ID] = e
	return e
}

// Entity returns the entity with the given id, or false.
func (m *Map) Entity(id int64) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// EntitiesInRange returns the live entities within radius of (x, y),
// in ascending entity id order. The ordering is the deterministic
// resolution order for area skills.
func (m *Map) EntitiesInRange(x, y int16, radius int) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entity
	for _, e := range m.entities {
		if !e.Alive() {
			continue
		}
		ex, ey := e.Position()
		if Distance(x, y, ex, ey) <= radius {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Distance is the Chebyshev distance between two cells.
func Distance(x1, y1, x2, y2 int16) int {
	dx := int(x1) - int(x2)
	if dx < 0 {
		dx = -dx
	}
	dy := int(y1) - int(y2)
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// World is the registry of all maps.
type World struct {
	mu   sync.RWMutex
	maps map[int]*Map
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{maps: make(map[int]*Map)}
}

// AddMap creates and registers a map with the given id.
func (w *World) AddMap(id int) *Map {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := NewMap(id)
	w.maps[id] = m
	return m
}

// Map returns the map with the given id.
func (w *World) Map(id int) (*Map, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, ok := w.maps[id]
	if !ok {
		return nil, oops.Code("MAP_NOT_FOUND").
			With("map_id", id).
			Errorf("map %d not found", id)
	}
	return m, nil
}
