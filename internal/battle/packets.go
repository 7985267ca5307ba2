// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/world"
)

// Outbound packet formatting. The grammar is
// `<event-verb> <scope-qualifier> <actor-id> <payload...>`, preserved
// from the client protocol.

func castBeginPacket(caster ulid.ULID, targetID int64, skill *content.Skill) string {
	return fmt.Sprintf("ct 1 %s 3 %d %d -1 %d",
		caster, targetID, skill.CastAnimation, skill.ID)
}

func zoneCastBeginPacket(caster ulid.ULID, skill *content.Skill) string {
	return fmt.Sprintf("ct_n 1 %s 3 -1 %d %d %d",
		caster, skill.CastAnimation, skill.CastEffect, skill.ID)
}

func hitPacket(caster ulid.ULID, e *world.Entity, skill *content.Skill, anim, effect, dmg int, kind HitKind, x, y int16) string {
	alive := 0
	if e.Alive() {
		alive = 1
	}
	return fmt.Sprintf("su 1 %s 3 %d %d %d %d %d %d %d %d %d %d %d %d",
		caster, e.ID, skill.ID, skill.Cooldown, anim, effect,
		x, y, alive, e.HPPercent(), dmg, kind, skill.Type-1)
}

func zoneBurstPacket(caster ulid.ULID, skill *content.Skill, x, y int16) string {
	return fmt.Sprintf("bs 1 %s %d %d %d %d %d %d 0 0 1 1 0 0 0",
		caster, x, y, skill.ID, skill.Cooldown, skill.AttackAnimation, skill.Effect)
}

func skillReadyPacket(castID int) string {
	return fmt.Sprintf("sr %d", castID)
}

// cancelPacket tells the caster a cast was rejected. Never queued.
const cancelPacket = "cancel 0 0"

func effectPacket(actor ulid.ULID, effect int) string {
	return fmt.Sprintf("eff 1 %s %d", actor, effect)
}

func deathPacket(e *world.Entity) string {
	return fmt.Sprintf("die 3 %d", e.ID)
}

func dropPacket(d world.GroundDrop) string {
	return fmt.Sprintf("drop %d %d %d %d", d.ItemID, d.Amount, d.X, d.Y)
}

func levelUpPacket(actor ulid.ULID) string {
	return fmt.Sprintf("levelup %s", actor)
}
