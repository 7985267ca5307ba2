// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

import (
	"bytes"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/sched"
	"github.com/mirefall/mirefall/internal/world"
)

// syncBuffer is a goroutine-safe session output sink. Scheduler
// callbacks write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (b *syncBuffer) CountPrefix(prefix string) int {
	n := 0
	for _, l := range b.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func (b *syncBuffer) HasPrefix(prefix string) bool {
	return b.CountPrefix(prefix) > 0
}

// Test content: castTime 1 tick (100ms), cooldown 3 ticks (300ms).
func testSkill() *content.Skill {
	return &content.Skill{
		ID: 240, CastID: 1, Name: "Sharp Blade", Type: 0,
		CastTime: 1, Cooldown: 3, Range: 5,
		AttackAnimation: 11, Effect: 4,
	}
}

func testZoneSkill() *content.Skill {
	return &content.Skill{
		ID: 250, CastID: 2, Name: "Ember Wave", Type: 2,
		CastTime: 1, Cooldown: 3, TargetRange: 5,
		AttackAnimation: 20, Effect: 7,
	}
}

type fixture struct {
	world    *world.World
	mapOne   *world.Map
	catalog  *content.Catalog
	sessions *core.SessionManager
	sch      *sched.Scheduler
	engine   *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	catalog := content.NewCatalog()
	catalog.AddSkill(testSkill())
	catalog.AddSkill(testZoneSkill())
	catalog.AddMonster(&content.Monster{
		ID: 1, Name: "Mire Rat", Level: 3, MaxHP: 100,
		XP: 60, JobXP: 12,
		Drops: []content.Drop{{ItemID: 2018, Amount: 1, Chance: 1000}},
	})

	w := world.NewWorld()
	m := w.AddMap(1)

	sessions := core.NewSessionManager()
	sch := sched.New()
	t.Cleanup(sch.Shutdown)

	defaults := []Option{
		WithFormula(FixedFormula{Damage: 40, Kind: HitNormal}),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	engine := NewEngine(w, catalog, sessions, core.NewBroadcaster(sessions), sch,
		append(defaults, opts...)...)

	return &fixture{world: w, mapOne: m, catalog: catalog, sessions: sessions, sch: sch, engine: engine}
}

func (f *fixture) addCaster(t *testing.T) (*core.Session, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	s := core.NewSession(buf)
	s.Bind(&core.Character{
		ID: core.NewULID(), Name: "Kael", Class: core.ClassSwordsman,
		Level: 10, JobLevel: 1,
		HP: 200, MaxHP: 200, MP: 100, MaxMP: 100,
		MapID: 1, X: 0, Y: 0,
	})
	f.sessions.Add(s)
	f.engine.EquipSkills(s.ID, []*content.Skill{testSkill(), testZoneSkill()})
	return s, buf
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}

// The concrete scenario: three 40-damage casts against 100 HP, each
// begun after the previous cooldown expires, reach 20 HP, then clamp
// to 0 with death rewards exactly once.
func TestEngine_TargetedCasts_KillOnThird(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	castAndWaitReady := func() {
		before := buf.CountPrefix("sr 1")
		require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
		waitFor(t, func() bool { return buf.CountPrefix("sr 1") > before }, "skill never came off cooldown")
	}

	castAndWaitReady()
	hp, _ := mon.HP()
	assert.Equal(t, 60, hp)

	castAndWaitReady()
	hp, _ = mon.HP()
	assert.Equal(t, 20, hp)

	castAndWaitReady()
	hp, _ = mon.HP()
	assert.Equal(t, 0, hp, "overkill not clamped")
	assert.False(t, mon.Alive())

	assert.Equal(t, 3, buf.CountPrefix("su 1"), "hit broadcast count")
	assert.Equal(t, 1, buf.CountPrefix("die 3"), "death must be announced exactly once")
	assert.Equal(t, 1, buf.CountPrefix("drop 2018"), "guaranteed loot must drop exactly once")
	assert.Equal(t, int64(60), s.Character().XP, "XP awarded exactly once")
}

// Two cast commands against the same slot before it returns to Idle:
// at most one resolves, the second is rejected with a cancel notice.
func TestEngine_SecondCastWhileBusyIsRejected(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	assert.True(t, buf.HasPrefix("cancel 0 0"), "second cast not rejected")

	waitFor(t, func() bool { return buf.HasPrefix("sr 1") }, "first cast never finished")
	assert.Equal(t, 1, buf.CountPrefix("su 1"), "rejected cast must not resolve")
	hp, _ := mon.HP()
	assert.Equal(t, 60, hp)
}

// The interval between a resolution and the slot returning to Idle is
// at least the declared cooldown. The cooldown counts from the moment
// the hits were applied, so the full wait from the cast command is cast
// time plus cooldown, never cooldown alone.
func TestEngine_CooldownDurationHonored(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	start := time.Now()
	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	waitFor(t, func() bool { return buf.HasPrefix("su 1") }, "cast never resolved")
	resolved := time.Now()
	waitFor(t, func() bool { return buf.HasPrefix("sr 1") }, "skill never came off cooldown")

	skill := testSkill()
	total := time.Since(start)
	assert.GreaterOrEqual(t, total, skill.CastDuration()+skill.CooldownDuration(),
		"ready after %v from cast begin; cooldown must not absorb the cast time", total)

	// The observed resolve timestamp trails the real one by at most the
	// poll interval; allow that much slack.
	sinceResolve := time.Since(resolved)
	assert.GreaterOrEqual(t, sinceResolve, skill.CooldownDuration()-10*time.Millisecond,
		"ready %v after resolution, declared cooldown %v", sinceResolve, skill.CooldownDuration())

	slot, ok := f.engine.SlotFor(s.ID, 1)
	require.True(t, ok)
	waitFor(t, func() bool { return slot.State() == StateIdle }, "slot stuck")
}

// A cast issued during the cooldown window is rejected, never queued.
func TestEngine_CastDuringCooldownRejected(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	waitFor(t, func() bool { return buf.HasPrefix("su 1") }, "cast never resolved")

	// Resolved but still cooling down.
	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	assert.True(t, buf.HasPrefix("cancel 0 0"))

	waitFor(t, func() bool { return buf.HasPrefix("sr 1") }, "cooldown never expired")
	assert.Equal(t, 1, buf.CountPrefix("su 1"))
}

// Disconnecting while Casting: the resolve callback detects the dead
// session, the slot returns to Idle, and no damage or broadcast is
// applied for that cast.
func TestEngine_DisconnectMidCastAppliesNothing(t *testing.T) {
	f := newFixture(t)
	s, _ := f.addCaster(t)
	_, observerBuf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	slot, ok := f.engine.SlotFor(s.ID, 1)
	require.True(t, ok)
	require.Equal(t, StateCasting, slot.State())

	// Invalidate without cancelling the timer: the callback itself
	// must detect the dead session.
	require.NoError(t, f.sessions.Remove(s.ID))

	waitFor(t, func() bool { return slot.State() == StateIdle }, "slot never returned to Idle")
	hp, _ := mon.HP()
	assert.Equal(t, 100, hp, "damage applied for a cancelled cast")
	assert.Equal(t, 0, observerBuf.CountPrefix("su 1"), "hit broadcast for a cancelled cast")
}

// An area cast resolves every monster in radius in ascending entity id
// order; a death mid-list does not block the remaining targets.
func TestEngine_ZoneResolvesAscendingAndDeathDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)

	first := f.mapOne.Spawn(1, 100, 1, 1)
	dying := f.mapOne.Spawn(1, 10, 2, 2) // dies to a 40-damage hit
	third := f.mapOne.Spawn(1, 100, 3, 3)

	require.NoError(t, f.engine.UseSkillOnZone(s, 2, 2, 2))
	waitFor(t, func() bool { return buf.CountPrefix("su 1") == 3 }, "not all targets resolved")

	var hitOrder []int64
	for _, line := range buf.Lines() {
		fields := strings.Fields(line)
		if fields[0] != "su" {
			continue
		}
		id, err := strconv.ParseInt(fields[4], 10, 64)
		require.NoError(t, err)
		hitOrder = append(hitOrder, id)
	}
	assert.Equal(t, []int64{first.ID, dying.ID, third.ID}, hitOrder, "resolution order not ascending by id")

	assert.False(t, dying.Alive())
	hp, _ := first.HP()
	assert.Equal(t, 60, hp)
	hp, _ = third.HP()
	assert.Equal(t, 60, hp)
	assert.True(t, buf.HasPrefix("bs 1"), "zone burst not announced")
}

func TestEngine_SittingCharacterCannotCast(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	s.WithCharacter(func(c *core.Character) { c.Sitting = true })
	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))

	assert.True(t, buf.HasPrefix("cancel 0 0"))
	slot, _ := f.engine.SlotFor(s.ID, 1)
	assert.Equal(t, StateIdle, slot.State())
}

func TestEngine_DeadCharacterCannotCast(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	s.WithCharacter(func(c *core.Character) { c.HP = 0 })
	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	assert.True(t, buf.HasPrefix("cancel 0 0"))
}

func TestEngine_OutOfRangeTargetRejected(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 30, 30) // range is 5

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	assert.True(t, buf.HasPrefix("cancel 0 0"))
	hp, _ := mon.HP()
	assert.Equal(t, 100, hp)
}

func TestEngine_UnknownCastIDErrors(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)

	err := f.engine.UseSkillOnTarget(s, 99, 1)
	require.Error(t, err)
	assert.True(t, buf.HasPrefix("cancel 0 0"))
}

func TestEngine_DeadTargetRejected(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 10, 2, 2)
	mon.ApplyDamage(10, core.NewULID())

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	assert.True(t, buf.HasPrefix("cancel 0 0"))
}

// Combo breakpoint selection: a skill with a breakpoint at hit 2 uses
// the combo animation on the second quick resolution, then resets.
func TestEngine_ComboVariantSelectedOnce(t *testing.T) {
	f := newFixture(t)

	combo := &content.Skill{
		ID: 260, CastID: 3, Name: "Twin Fangs", Type: 0,
		CastTime: 1, Cooldown: 2, Range: 5,
		AttackAnimation: 11, Effect: 4,
		Combos: []content.Combo{{Hit: 2, Animation: 77, Effect: 78}},
	}
	f.catalog.AddSkill(combo)

	s, buf := f.addCaster(t)
	f.engine.EquipSkills(s.ID, []*content.Skill{combo})
	mon := f.mapOne.Spawn(1, 1000, 2, 2)

	animOfHit := func(n int) string {
		var anims []string
		for _, line := range buf.Lines() {
			fields := strings.Fields(line)
			if fields[0] == "su" {
				anims = append(anims, fields[7])
			}
		}
		require.Greater(t, len(anims), n, "hit %d not yet resolved", n)
		return anims[n]
	}

	for range 3 {
		before := buf.CountPrefix("sr 3")
		require.NoError(t, f.engine.UseSkillOnTarget(s, 3, mon.ID))
		waitFor(t, func() bool { return buf.CountPrefix("sr 3") > before }, "cast never finished")
	}

	assert.Equal(t, "11", animOfHit(0), "first hit must use the default animation")
	assert.Equal(t, "77", animOfHit(1), "second hit must use the combo variant")
	assert.Equal(t, "11", animOfHit(2), "counter must reset after the max breakpoint")
}

func TestEngine_MultiTargetHitResolvesEachListed(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)

	a := f.mapOne.Spawn(1, 100, 1, 1)
	b := f.mapOne.Spawn(1, 100, 2, 2)

	require.NoError(t, f.engine.MultiTargetHit(s, [][2]int64{{1, a.ID}, {1, b.ID}}))

	assert.Equal(t, 2, buf.CountPrefix("su 1"))
	hp, _ := a.HP()
	assert.Equal(t, 60, hp)
	hp, _ = b.HP()
	assert.Equal(t, 60, hp)

	// Instant hits bypass the cast lifecycle entirely.
	slot, _ := f.engine.SlotFor(s.ID, 1)
	assert.Equal(t, StateIdle, slot.State())
	assert.False(t, buf.HasPrefix("ct 1"))
}

func TestEngine_DropSessionResetsSlots(t *testing.T) {
	f := newFixture(t)
	s, _ := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 100, 2, 2)

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	slot, ok := f.engine.SlotFor(s.ID, 1)
	require.True(t, ok)

	f.engine.DropSession(s.ID)
	assert.Equal(t, StateIdle, slot.State())
	_, ok = f.engine.SlotFor(s.ID, 1)
	assert.False(t, ok)
}

// Experience rolls the character over its level threshold: HP/MP
// refill and the level-up is broadcast.
func TestEngine_LevelUpOnKill(t *testing.T) {
	f := newFixture(t)
	s, buf := f.addCaster(t)
	mon := f.mapOne.Spawn(1, 40, 2, 2)

	s.WithCharacter(func(c *core.Character) {
		c.Level = 1
		c.XP = 0
		c.HP = 120
	})

	require.NoError(t, f.engine.UseSkillOnTarget(s, 1, mon.ID))
	waitFor(t, func() bool { return buf.HasPrefix("die 3") }, "monster never died")

	// Level 1 needs 50 XP; the kill grants 60.
	char := s.Character()
	assert.Equal(t, 2, char.Level)
	assert.Equal(t, int64(10), char.XP)
	assert.Equal(t, char.MaxHP, char.HP, "HP not refilled on level up")
	assert.True(t, buf.HasPrefix("levelup "), "level up not broadcast")
}
