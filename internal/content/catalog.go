// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package content holds the static game content catalog: skill and
// monster definitions looked up by numeric id. The catalog is built
// once at startup and immutable afterwards.
package content

import (
	"os"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Tick is the unit cast times and cooldowns are declared in.
const Tick = 100 * time.Millisecond

// Combo declares a breakpoint in a melee skill's hit sequence. When a
// character's sequential hit counter reaches Hit, the combo animation
// and effect replace the skill's defaults for that resolution.
type Combo struct {
	Hit       int `yaml:"hit"`
	Animation int `yaml:"animation"`
	Effect    int `yaml:"effect"`
}

// Skill is the static definition of a castable skill.
type Skill struct {
	ID              int     `yaml:"id"`
	CastID          int     `yaml:"cast_id"` // client-side slot id used on the wire
	Name            string  `yaml:"name"`
	Type            int     `yaml:"type"` // 0 melee, 1 ranged, 2 magic
	CastTime        int     `yaml:"cast_time"` // in ticks
	Cooldown        int     `yaml:"cooldown"`  // in ticks
	MPCost          int     `yaml:"mp_cost"`
	Range           int     `yaml:"range"`        // max distance to primary target
	TargetRange     int     `yaml:"target_range"` // area radius; 0 = single target
	CastAnimation   int     `yaml:"cast_animation"`
	CastEffect      int     `yaml:"cast_effect"`
	AttackAnimation int     `yaml:"attack_animation"`
	Effect          int     `yaml:"effect"`
	Combos          []Combo `yaml:"combos"`
}

// CastDuration returns the cast delay as a duration.
func (s *Skill) CastDuration() time.Duration {
	return time.Duration(s.CastTime) * Tick
}

// CooldownDuration returns the cooldown as a duration.
func (s *Skill) CooldownDuration() time.Duration {
	return time.Duration(s.Cooldown) * Tick
}

// MaxComboHit returns the highest combo breakpoint, or 0 if the skill
// has no combos.
func (s *Skill) MaxComboHit() int {
	max := 0
	for _, c := range s.Combos {
		if c.Hit > max {
			max = c.Hit
		}
	}
	return max
}

// ComboAt returns the combo matching the given hit count, if any.
func (s *Skill) ComboAt(hit int) (Combo, bool) {
	for _, c := range s.Combos {
		if c.Hit == hit {
			return c, true
		}
	}
	return Combo{}, false
}

// Drop is a loot table entry on a monster definition.
type Drop struct {
	ItemID int `yaml:"item_id"`
	Amount int `yaml:"amount"`
	Chance int `yaml:"chance"` // per mille
}

// Monster is the static definition of a monster type.
type Monster struct {
	ID             int    `yaml:"id"`
	Name           string `yaml:"name"`
	Level          int    `yaml:"level"`
	MaxHP          int    `yaml:"max_hp"`
	Defense        int    `yaml:"defense"`
	DefenseUpgrade int    `yaml:"defense_upgrade"`
	XP             int64  `yaml:"xp"`
	JobXP          int64  `yaml:"job_xp"`
	Drops          []Drop `yaml:"drops"`
}

// Spawn places one monster instance on a map at startup.
type Spawn struct {
	MonsterID int   `yaml:"monster_id"`
	X         int16 `yaml:"x"`
	Y         int16 `yaml:"y"`
}

// MapDef declares a map and its initial monster population.
type MapDef struct {
	ID     int     `yaml:"id"`
	Name   string  `yaml:"name"`
	Spawns []Spawn `yaml:"spawns"`
}

// Catalog is the immutable content lookup table.
type Catalog struct {
	skills       map[int]*Skill
	skillsByCast map[int]*Skill
	monsters     map[int]*Monster
	maps         []*MapDef
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		skills:       make(map[int]*Skill),
		skillsByCast: make(map[int]*Skill),
		monsters:     make(map[int]*Monster),
	}
}

// catalogFile is the YAML document shape for content files.
type catalogFile struct {
	Skills   []*Skill   `yaml:"skills"`
	Monsters []*Monster `yaml:"monsters"`
	Maps     []*MapDef  `yaml:"maps"`
}

// Load reads a YAML content file into a catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CONTENT_READ_FAILED").With("path", path).Wrap(err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, oops.Code("CONTENT_PARSE_FAILED").With("path", path).Wrap(err)
	}

	c := NewCatalog()
	for _, s := range file.Skills {
		c.AddSkill(s)
	}
	for _, m := range file.Monsters {
		c.AddMonster(m)
	}
	c.maps = file.Maps
	return c, nil
}

// AddSkill registers a skill definition. Intended for startup loading
// and tests; the catalog must not be mutated once serving lookups.
func (c *Catalog) AddSkill(s *Skill) {
	c.skills[s.ID] = s
	c.skillsByCast[s.CastID] = s
}

// AddMonster registers a monster definition.
func (c *Catalog) AddMonster(m *Monster) {
	c.monsters[m.ID] = m
}

// Skill returns the skill definition for id.
func (c *Catalog) Skill(id int) (*Skill, bool) {
	s, ok := c.skills[id]
	return s, ok
}

// SkillByCastID returns the skill whose wire cast id matches.
func (c *Catalog) SkillByCastID(castID int) (*Skill, bool) {
	s, ok := c.skillsByCast[castID]
	return s, ok
}

// Monster returns the monster definition for id.
func (c *Catalog) Monster(id int) (*Monster, bool) {
	m, ok := c.monsters[id]
	return m, ok
}

// Maps returns the declared map definitions in file order.
func (c *Catalog) Maps() []*MapDef {
	return c.maps
}
