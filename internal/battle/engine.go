// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package battle drives the timed-action engine behind skill casting:
// the per-slot cast/resolve/cooldown state machine, combo tracking,
// and target resolution ordering.
package battle

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/sched"
	"github.com/mirefall/mirefall/internal/world"
)

// Engine coordinates skill casts. The engine never blocks a thread for
// a timed phase: the cast delay and cooldown expiry are scheduler
// callbacks tagged with the casting session's connection id.
type Engine struct {
	world     *world.World
	catalog   *content.Catalog
	sessions  *core.SessionManager
	bcast     *core.Broadcaster
	scheduler *sched.Scheduler
	formula   CombatFormula
	curve     ProgressionCurve

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.RWMutex
	slots map[ulid.ULID]map[int]*Slot // conn id -> cast id -> slot
}

// Option configures an Engine during construction.
type Option func(*Engine)

// WithFormula overrides the combat formula.
func WithFormula(f CombatFormula) Option {
	return func(e *Engine) { e.formula = f }
}

// WithCurve overrides the progression curve.
func WithCurve(c ProgressionCurve) Option {
	return func(e *Engine) { e.curve = c }
}

// WithRand overrides the random source. Tests pin it for determinism.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// NewEngine creates a battle engine.
func NewEngine(w *world.World, catalog *content.Catalog, sessions *core.SessionManager, bcast *core.Broadcaster, scheduler *sched.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		world:     w,
		catalog:   catalog,
		sessions:  sessions,
		bcast:     bcast,
		scheduler: scheduler,
		formula:   NewDefaultFormula(),
		curve:     DefaultCurve{},
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		slots:     make(map[ulid.ULID]map[int]*Slot),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EquipSkills creates idle action slots for a session's skills, keyed
// by the skill's wire cast id. Called once after authentication.
func (e *Engine) EquipSkills(connID ulid.ULID, skills []*content.Skill) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slots := make(map[int]*Slot, len(skills))
	for _, s := range skills {
		slots[s.CastID] = NewSlot(s)
	}
	e.slots[connID] = slots
}

// DropSession discards a session's slots. Slots mid-cast are reset so
// any late callback observes Idle and applies nothing.
func (e *Engine) DropSession(connID ulid.ULID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, slot := range e.slots[connID] {
		slot.Reset()
	}
	delete(e.slots, connID)
}

// SlotFor returns the slot bound to a session's cast id.
func (e *Engine) SlotFor(connID ulid.ULID, castID int) (*Slot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	slot, ok := e.slots[connID][castID]
	return slot, ok
}

// UseSkillOnTarget begins a targeted cast (the `u_s` path). Guard
// failures reject with a cancel notice to the caster; they are
// expected conditions, not errors.
func (e *Engine) UseSkillOnTarget(s *core.Session, castID int, targetID int64) error {
	char, ok := e.characterSnapshot(s)
	if !ok {
		return oops.Code("NO_CHARACTER").Errorf("cast without a bound character")
	}

	skill, slot, err := e.lookupSlot(s, castID)
	if err != nil {
		s.Send(cancelPacket)
		return err
	}

	if !char.CanFight() {
		e.reject(s, skill)
		return nil
	}

	m, err := e.world.Map(char.MapID)
	if err != nil {
		e.reject(s, skill)
		return err
	}
	target, ok := m.Entity(targetID)
	if !ok || !target.Alive() {
		e.reject(s, skill)
		return nil
	}
	tx, ty := target.Position()
	if skill.TargetRange == 0 && world.Distance(char.X, char.Y, tx, ty) > skill.Range+1 {
		e.reject(s, skill)
		return nil
	}

	if !slot.BeginCast(time.Now()) {
		e.reject(s, skill)
		return nil
	}
	CastsTotal.WithLabelValues(skill.Name, OutcomeBegun).Inc()

	e.bcast.Broadcast(core.MapScope(char.MapID), castBeginPacket(char.ID, targetID, skill))
	if skill.CastEffect != 0 {
		e.bcast.Broadcast(core.MapScope(char.MapID), effectPacket(char.ID, skill.CastEffect))
	}

	e.scheduler.After(s.ID, skill.CastDuration(), func() {
		e.resolveTarget(s, slot, skill, castID, targetID, char.MapID)
	})
	return nil
}

// UseSkillOnZone begins an area cast at map coordinates (the `u_as`
// path).
func (e *Engine) UseSkillOnZone(s *core.Session, castID int, x, y int16) error {
	char, ok := e.characterSnapshot(s)
	if !ok {
		return oops.Code("NO_CHARACTER").Errorf("cast without a bound character")
	}

	skill, slot, err := e.lookupSlot(s, castID)
	if err != nil {
		s.Send(cancelPacket)
		return err
	}

	if !char.CanFight() {
		e.reject(s, skill)
		return nil
	}
	if !slot.BeginCast(time.Now()) {
		e.reject(s, skill)
		return nil
	}
	CastsTotal.WithLabelValues(skill.Name, OutcomeBegun).Inc()

	e.bcast.Broadcast(core.MapScope(char.MapID), zoneCastBeginPacket(char.ID, skill))

	e.scheduler.After(s.ID, skill.CastDuration(), func() {
		e.resolveZone(s, slot, skill, castID, x, y, char.MapID)
	})
	return nil
}

// MultiTargetHit resolves a burst of instant hits against several
// targets (the `mtlist` path). These bypass the cast lifecycle: the
// client only sends the list for skills with no cast phase.
func (e *Engine) MultiTargetHit(s *core.Session, pairs [][2]int64) error {
	char, ok := e.characterSnapshot(s)
	if !ok {
		return oops.Code("NO_CHARACTER").Errorf("cast without a bound character")
	}
	if !char.CanFight() {
		return nil
	}
	m, err := e.world.Map(char.MapID)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		skill, ok := e.catalog.SkillByCastID(int(pair[0]))
		if !ok {
			continue
		}
		target, ok := m.Entity(pair[1])
		if !ok || !target.Alive() {
			continue
		}
		e.hitEntity(s, &char, target, skill, HitSplash)
	}
	return nil
}

// resolveTarget is the Casting -> Resolving edge for a targeted cast.
// It runs on a scheduler goroutine and must validate session liveness
// before touching state.
func (e *Engine) resolveTarget(s *core.Session, slot *Slot, skill *content.Skill, castID int, targetID int64, mapID int) {
	if !s.Live() {
		slot.Reset()
		CastsTotal.WithLabelValues(skill.Name, OutcomeStale).Inc()
		slog.Debug("cast resolution discarded: session gone",
			"conn_id", s.ID.String(),
			"skill", skill.ID,
		)
		return
	}
	if !slot.BeginResolve() {
		CastsTotal.WithLabelValues(skill.Name, OutcomeStale).Inc()
		return
	}
	timer := prometheus.NewTimer(ResolveDuration.WithLabelValues(skill.Name))
	defer timer.ObserveDuration()

	char, _ := e.characterSnapshot(s)
	m, err := e.world.Map(mapID)
	if err == nil {
		primary, ok := m.Entity(targetID)
		if ok && primary.Alive() {
			e.hitPrimary(s, &char, slot, primary, skill)

			// Splash around the primary target, nearest id first,
			// skipping the primary itself. A death mid-iteration does
			// not block the remaining targets.
			if skill.TargetRange > 0 {
				px, py := primary.Position()
				for _, mon := range m.EntitiesInRange(px, py, skill.TargetRange) {
					if mon.ID == targetID {
						continue
					}
					e.hitEntity(s, &char, mon, skill, HitSplash)
				}
			}
		}
	}

	e.finishCast(s, slot, skill, castID)
}

// resolveZone is the Casting -> Resolving edge for an area cast.
func (e *Engine) resolveZone(s *core.Session, slot *Slot, skill *content.Skill, castID int, x, y int16, mapID int) {
	if !s.Live() {
		slot.Reset()
		CastsTotal.WithLabelValues(skill.Name, OutcomeStale).Inc()
		slog.Debug("zone resolution discarded: session gone",
			"conn_id", s.ID.String(),
			"skill", skill.ID,
		)
		return
	}
	if !slot.BeginResolve() {
		CastsTotal.WithLabelValues(skill.Name, OutcomeStale).Inc()
		return
	}
	timer := prometheus.NewTimer(ResolveDuration.WithLabelValues(skill.Name))
	defer timer.ObserveDuration()

	char, _ := e.characterSnapshot(s)
	m, err := e.world.Map(mapID)
	if err == nil {
		e.bcast.Broadcast(core.MapScope(mapID), zoneBurstPacket(char.ID, skill, x, y))
		for _, mon := range m.EntitiesInRange(x, y, skill.TargetRange) {
			e.hitEntity(s, &char, mon, skill, HitSplash)
		}
	}

	e.finishCast(s, slot, skill, castID)
}

// hitPrimary resolves the primary target of a targeted cast, applying
// combo bookkeeping before the hit is broadcast.
func (e *Engine) hitPrimary(s *core.Session, char *core.Character, slot *Slot, target *world.Entity, skill *content.Skill) {
	dmg, kind := e.roll(char, target, skill)
	if kind == HitMiss {
		dmg = 0
	}
	res := target.ApplyDamage(dmg, char.ID)

	anim, effect := skill.AttackAnimation, skill.Effect
	if len(skill.Combos) > 0 {
		if combo, ok := slot.AdvanceCombo(kind == HitMiss); ok {
			anim, effect = combo.Animation, combo.Effect
		}
	}

	e.bcast.Broadcast(core.MapScope(char.MapID),
		hitPacket(char.ID, target, skill, anim, effect, dmg, kind, char.X, char.Y))
	if res.Died {
		e.onKill(s, char.MapID, target)
	}
}

// hitEntity resolves one secondary or instant hit.
func (e *Engine) hitEntity(s *core.Session, char *core.Character, target *world.Entity, skill *content.Skill, kind HitKind) {
	dmg, rolled := e.roll(char, target, skill)
	if rolled == HitMiss {
		dmg = 0
	}
	res := target.ApplyDamage(dmg, char.ID)

	e.bcast.Broadcast(core.MapScope(char.MapID),
		hitPacket(char.ID, target, skill, skill.AttackAnimation, skill.Effect, dmg, kind, char.X, char.Y))
	if res.Died {
		e.onKill(s, char.MapID, target)
	}
}

// finishCast moves the slot to Cooldown and schedules the expiry
// callback at resolution time + cooldown. Cooldown timers are not user
// cancellable; a disconnect makes the callback a no-op.
func (e *Engine) finishCast(s *core.Session, slot *Slot, skill *content.Skill, castID int) {
	expireAt := slot.FinishResolve(time.Now())
	CastsTotal.WithLabelValues(skill.Name, OutcomeResolved).Inc()

	e.scheduler.After(s.ID, time.Until(expireAt), func() {
		slot.ExpireCooldown()
		if s.Live() {
			s.Send(skillReadyPacket(castID))
		}
	})
}

// onKill handles the single death transition of an entity: loot rolls,
// experience, and the death broadcast.
func (e *Engine) onKill(s *core.Session, mapID int, target *world.Entity) {
	KillsTotal.Inc()
	e.bcast.Broadcast(core.MapScope(mapID), deathPacket(target))

	def, ok := e.catalog.Monster(target.DefID)
	if !ok {
		slog.Warn("killed entity has no monster definition",
			"entity_id", target.ID,
			"def_id", target.DefID,
		)
		return
	}

	x, y := target.Position()
	e.rngMu.Lock()
	drops := world.RollDrops(def, x, y, e.rng)
	e.rngMu.Unlock()
	for _, d := range drops {
		e.bcast.Broadcast(core.MapScope(mapID), dropPacket(d))
	}

	e.awardExperience(s, def)
}

// awardExperience applies kill XP and runs level-up loops. Packets are
// collected under the session lock and broadcast after it is released.
func (e *Engine) awardExperience(s *core.Session, def *content.Monster) {
	var (
		charID   ulid.ULID
		mapID    int
		leveled  bool
		eligible bool
	)
	s.WithCharacter(func(c *core.Character) {
		charID, mapID = c.ID, c.MapID
		if c.HP <= 0 {
			return
		}
		eligible = true
		if c.Level < MaxLevel {
			c.XP += def.XP
		}
		c.JobXP += def.JobXP

		for c.Level < MaxLevel && c.XP >= e.curve.XPNeeded(c.Level) {
			c.XP -= e.curve.XPNeeded(c.Level)
			c.Level++
			c.HP, c.MP = c.MaxHP, c.MaxMP
			leveled = true
		}
		for c.JobLevel < MaxLevel && c.JobXP >= e.curve.JobXPNeeded(c.JobLevel) {
			c.JobXP -= e.curve.JobXPNeeded(c.JobLevel)
			c.JobLevel++
			c.HP, c.MP = c.MaxHP, c.MaxMP
			leveled = true
		}
	})

	if eligible && leveled {
		e.bcast.Broadcast(core.MapScope(mapID), levelUpPacket(charID))
		e.bcast.Broadcast(core.MapScope(mapID), effectPacket(charID, 6))
		e.bcast.Broadcast(core.MapScope(mapID), effectPacket(charID, 198))
	}
}

// reject sends the cancellation notice for a refused cast.
func (e *Engine) reject(s *core.Session, skill *content.Skill) {
	CastsTotal.WithLabelValues(skill.Name, OutcomeRejected).Inc()
	s.Send(cancelPacket)
}

func (e *Engine) lookupSlot(s *core.Session, castID int) (*content.Skill, *Slot, error) {
	skill, ok := e.catalog.SkillByCastID(castID)
	if !ok {
		return nil, nil, oops.Code("UNKNOWN_SKILL").
			With("cast_id", castID).
			Errorf("no skill with cast id %d", castID)
	}
	slot, ok := e.SlotFor(s.ID, castID)
	if !ok {
		return nil, nil, oops.Code("SKILL_NOT_EQUIPPED").
			With("cast_id", castID).
			Errorf("skill %d not equipped", skill.ID)
	}
	return skill, slot, nil
}

func (e *Engine) characterSnapshot(s *core.Session) (core.Character, bool) {
	var char core.Character
	ok := s.WithCharacter(func(c *core.Character) { char = *c })
	return char, ok
}

func (e *Engine) roll(attacker *core.Character, target *world.Entity, skill *content.Skill) (int, HitKind) {
	def, ok := e.catalog.Monster(target.DefID)
	if !ok {
		def = &content.Monster{}
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.formula.Resolve(attacker, def, skill, e.rng)
}

