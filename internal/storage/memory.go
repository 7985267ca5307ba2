// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-process Store used by tests and by dev mode
// when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]*CharacterRecord
	skills map[ulid.ULID][]SkillRef
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]*CharacterRecord),
		skills: make(map[ulid.ULID][]SkillRef),
	}
}

// AddCharacter seeds a character and its learned skills. Names are
// matched case-insensitively, mirroring the postgres collation.
func (s *MemoryStore) AddCharacter(rec *CharacterRecord, skills []SkillRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.byName[strings.ToLower(rec.Name)] = &cp
	s.skills[rec.ID] = append([]SkillRef(nil), skills...)
}

// FindCharacterByName looks up a character by login name.
func (s *MemoryStore) FindCharacterByName(_ context.Context, name string) (*CharacterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrCharacterNotFound(name)
	}
	cp := *rec
	return &cp, nil
}

// LoadCharacterSkills returns the character's learned skills.
func (s *MemoryStore) LoadCharacterSkills(_ context.Context, charID ulid.ULID) ([]SkillRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SkillRef(nil), s.skills[charID]...), nil
}

// SaveCharacter writes the record back, keyed by name. A save with an
// empty password hash keeps the stored one, matching the postgres
// upsert which never touches credentials.
func (s *MemoryStore) SaveCharacter(_ context.Context, rec *CharacterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	key := strings.ToLower(rec.Name)
	if cp.PasswordHash == "" {
		if existing, ok := s.byName[key]; ok {
			cp.PasswordHash = existing.PasswordHash
		}
	}
	s.byName[key] = &cp
	return nil
}

// SaveCharacterSkills replaces the character's learned skill list.
func (s *MemoryStore) SaveCharacterSkills(_ context.Context, charID ulid.ULID, refs []SkillRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[charID] = append([]SkillRef(nil), refs...)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
