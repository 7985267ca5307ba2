// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package storage persists characters and their learned skills.
package storage

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mirefall/mirefall/internal/core"
)

// Error codes for storage failures.
const (
	CodeCharacterNotFound = "CHARACTER_NOT_FOUND"
	CodeQueryFailed       = "STORAGE_QUERY_FAILED"
)

// SkillRef links a character to a learned skill and the quickbar
// position its cast id maps to.
type SkillRef struct {
	SkillID  int
	Position int
}

// CharacterRecord is the persisted shape of a character. The gateway
// hydrates a core.Character from it at login and writes it back on
// logout and periodic saves.
type CharacterRecord struct {
	ID           ulid.ULID
	Name         string
	PasswordHash string
	Class        int
	Level        int
	JobLevel     int
	XP           int64
	JobXP        int64
	HP           int
	MP           int
	MapID        int
	X            int16
	Y            int16
}

// Store is the persistence boundary. Implementations must be safe for
// concurrent use; calls happen outside cast resolution.
type Store interface {
	FindCharacterByName(ctx context.Context, name string) (*CharacterRecord, error)
	LoadCharacterSkills(ctx context.Context, charID ulid.ULID) ([]SkillRef, error)
	SaveCharacter(ctx context.Context, rec *CharacterRecord) error
	SaveCharacterSkills(ctx context.Context, charID ulid.ULID, refs []SkillRef) error
	Close()
}

// ErrCharacterNotFound creates the not-found error for a login name.
func ErrCharacterNotFound(name string) error {
	return oops.Code(CodeCharacterNotFound).
		With("name", name).
		Errorf("no character named %q", name)
}

// RecordFromCharacter builds the persisted shape of a live character.
// The password hash is left empty; saves never touch credentials.
func RecordFromCharacter(c *core.Character) *CharacterRecord {
	return &CharacterRecord{
		ID:       c.ID,
		Name:     c.Name,
		Class:    int(c.Class),
		Level:    c.Level,
		JobLevel: c.JobLevel,
		XP:       c.XP,
		JobXP:    c.JobXP,
		HP:       c.HP,
		MP:       c.MP,
		MapID:    c.MapID,
		X:        c.X,
		Y:        c.Y,
	}
}
