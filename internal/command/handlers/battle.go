// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package handlers implements the core verb handlers bound into the
// dispatch table at startup.
package handlers

import (
	"context"

	"github.com/samber/oops"

	"github.com/mirefall/mirefall/internal/command"
	"github.com/mirefall/mirefall/internal/core"
)

// targetKindMonster is the only target kind the engine resolves.
// Lines aimed at other kinds are dropped.
const targetKindMonster = 3

// UseSkillHandler handles `u_s <seq> <castId> <targetKind> <targetId>
// [x y]`. The optional trailing coordinates update the caster's
// position before range checks, matching client behavior of bundling
// the last movement into the cast.
func UseSkillHandler(ctx context.Context, exec *command.Execution) error {
	castID, err := exec.IntArg(0)
	if err != nil {
		return err
	}
	targetKind, err := exec.IntArg(1)
	if err != nil {
		return err
	}
	targetID, err := exec.IntArg(2)
	if err != nil {
		return err
	}

	if len(exec.Args) >= 5 {
		x, err := exec.IntArg(3)
		if err != nil {
			return err
		}
		y, err := exec.IntArg(4)
		if err != nil {
			return err
		}
		exec.Session.WithCharacter(func(c *core.Character) {
			c.X, c.Y = int16(x), int16(y)
		})
	}

	if targetKind != targetKindMonster {
		return oops.Code(command.CodeMalformed).
			With("target_kind", targetKind).
			Errorf("unsupported target kind")
	}
	return exec.Services.Engine.UseSkillOnTarget(exec.Session, int(castID), targetID)
}

// ZoneSkillHandler handles `u_as <seq> <castId> <x> <y>`: an area
// cast at map coordinates.
func ZoneSkillHandler(ctx context.Context, exec *command.Execution) error {
	castID, err := exec.IntArg(0)
	if err != nil {
		return err
	}
	x, err := exec.IntArg(1)
	if err != nil {
		return err
	}
	y, err := exec.IntArg(2)
	if err != nil {
		return err
	}
	return exec.Services.Engine.UseSkillOnZone(exec.Session, int(castID), int16(x), int16(y))
}

// MultiTargetHandler handles `mtlist <seq> <castId1> <targetId1> ...`:
// a burst of instant hits. An odd argument count is malformed.
func MultiTargetHandler(ctx context.Context, exec *command.Execution) error {
	if len(exec.Args)%2 != 0 {
		return oops.Code(command.CodeMalformed).
			With("args", len(exec.Args)).
			Errorf("target list must be cast/target pairs")
	}

	pairs := make([][2]int64, 0, len(exec.Args)/2)
	for i := 0; i < len(exec.Args); i += 2 {
		castID, err := exec.IntArg(i)
		if err != nil {
			return err
		}
		targetID, err := exec.IntArg(i + 1)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]int64{castID, targetID})
	}
	return exec.Services.Engine.MultiTargetHit(exec.Session, pairs)
}
