// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

import (
	"math/rand/v2"

	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
)

// HitKind classifies a resolved hit.
type HitKind uint8

// Hit outcomes. The wire values match the client's hitmode field.
const (
	HitNormal   HitKind = 0
	HitMiss     HitKind = 1
	HitCritical HitKind = 3
	// HitSplash marks secondary hits of an area skill on the wire.
	HitSplash HitKind = 5
)

// CombatFormula computes the damage magnitude of one hit. The engine
// owns sequencing and state; the arithmetic is pluggable.
type CombatFormula interface {
	Resolve(attacker *core.Character, defender *content.Monster, skill *content.Skill, rng *rand.Rand) (damage int, kind HitKind)
}

// DefaultFormula is a plain level-scaled roll with a crit and miss
// chance. Magic skills never miss and never crit.
type DefaultFormula struct {
	MissChance int // percent
	CritChance int // percent
}

// NewDefaultFormula returns the stock formula.
func NewDefaultFormula() *DefaultFormula {
	return &DefaultFormula{MissChance: 20, CritChance: 10}
}

// Resolve rolls damage between a level-derived minimum and maximum,
// subtracts the defender's defense, then applies the hit-kind roll.
func (f *DefaultFormula) Resolve(attacker *core.Character, defender *content.Monster, skill *content.Skill, rng *rand.Rand) (int, HitKind) {
	minDmg := 5*attacker.Level + 10
	maxDmg := 8*attacker.Level + 20

	dmg := minDmg + rng.IntN(maxDmg-minDmg+1) - defender.Defense
	if dmg < 1 {
		dmg = 1
	}

	if skill.Type == 2 {
		return dmg, HitNormal
	}

	roll := rng.IntN(100)
	if roll < f.CritChance {
		return dmg * 2, HitCritical
	}
	if roll >= 100-f.MissChance {
		return 0, HitMiss
	}
	return dmg, HitNormal
}

// FixedFormula always returns the same damage and kind. Test helper.
type FixedFormula struct {
	Damage int
	Kind   HitKind
}

// Resolve returns the fixed outcome.
func (f FixedFormula) Resolve(*core.Character, *content.Monster, *content.Skill, *rand.Rand) (int, HitKind) {
	return f.Damage, f.Kind
}
