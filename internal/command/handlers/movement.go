// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/mirefall/mirefall/internal/command"
	"github.com/mirefall/mirefall/internal/core"
)

// WalkHandler handles `walk <seq> <x> <y>`: a position update
// broadcast to everyone else on the map.
func WalkHandler(ctx context.Context, exec *command.Execution) error {
	x, err := exec.IntArg(0)
	if err != nil {
		return err
	}
	y, err := exec.IntArg(1)
	if err != nil {
		return err
	}

	var charID ulid.ULID
	var mapID int
	var moved bool
	bound := exec.Session.WithCharacter(func(c *core.Character) {
		if c.HP <= 0 || c.Sitting {
			return
		}
		c.X, c.Y = int16(x), int16(y)
		charID = c.ID
		mapID = c.MapID
		moved = true
	})
	if !bound {
		return command.ErrNoCharacter()
	}
	if !moved {
		// Dead or sitting; the update was refused.
		return nil
	}

	exec.Services.Bcast.Broadcast(core.MapExcept(mapID, exec.Session.ID),
		fmt.Sprintf("mv 1 %s %d %d", charID, x, y))
	return nil
}

// RestHandler handles `rest <seq> <state>`: the sit/stand toggle.
// Sitting blocks casting until the character stands again.
func RestHandler(ctx context.Context, exec *command.Execution) error {
	state, err := exec.IntArg(0)
	if err != nil {
		return err
	}

	var charID ulid.ULID
	var mapID int
	var toggled bool
	bound := exec.Session.WithCharacter(func(c *core.Character) {
		if c.HP <= 0 {
			return
		}
		c.Sitting = state == 1
		charID = c.ID
		mapID = c.MapID
		toggled = true
	})
	if !bound {
		return command.ErrNoCharacter()
	}
	if !toggled {
		return nil
	}

	exec.Services.Bcast.Broadcast(core.MapScope(mapID),
		fmt.Sprintf("rest 1 %s %d", charID, state))
	return nil
}
