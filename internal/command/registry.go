// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"log/slog"
	"sync"
)

// Registry is the verb binding table. It is built at startup and
// thread-safe for concurrent lookup.
type Registry struct {
	entries map[string]Entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty binding table.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register binds a verb. A duplicate verb is overwritten with a
// warning; last registration wins.
func (r *Registry) Register(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[entry.Verb]; ok {
		slog.Warn("verb conflict: overwriting existing binding",
			"verb", entry.Verb,
			"previous_source", existing.Source,
			"new_source", entry.Source)
	}
	r.entries[entry.Verb] = entry
}

// Get retrieves a binding by verb, case-sensitively.
func (r *Registry) Get(verb string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[verb]
	return entry, ok
}

// All returns a copy of every registered binding.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}
