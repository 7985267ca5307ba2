// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/mirefall/mirefall/internal/command"
	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
)

// ConnectHandler handles `connect <seq> <name> <password>`: it
// authenticates against the stored bcrypt hash, binds the character
// to the session, and equips the character's learned skills.
func ConnectHandler(ctx context.Context, exec *command.Execution) error {
	name, password := exec.Args[0], exec.Args[1]
	svc := exec.Services

	rec, err := svc.Store.FindCharacterByName(ctx, name)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		// Unknown names and lookup failures both answer with the
		// generic rejection, so names cannot be probed.
		return command.ErrAuthFailed(name)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return command.ErrAuthFailed(name)
	}
	if svc.Sessions.FindByCharacter(rec.ID) != nil {
		return command.ErrInvalidState("connect", "character already online")
	}

	exec.Session.Bind(&core.Character{
		ID:       rec.ID,
		Name:     rec.Name,
		Class:    core.ClassType(rec.Class),
		Level:    rec.Level,
		JobLevel: rec.JobLevel,
		XP:       rec.XP,
		JobXP:    rec.JobXP,
		HP:       rec.HP,
		MaxHP:    rec.HP,
		MP:       rec.MP,
		MaxMP:    rec.MP,
		MapID:    rec.MapID,
		X:        rec.X,
		Y:        rec.Y,
	})

	refs, err := svc.Store.LoadCharacterSkills(ctx, rec.ID)
	if err != nil {
		return command.StorageError("Could not load your skills.", err)
	}
	skills := make([]*content.Skill, 0, len(refs))
	for _, ref := range refs {
		skill, ok := svc.Catalog.Skill(ref.SkillID)
		if !ok {
			slog.Warn("character references unknown skill",
				"character", rec.Name,
				"skill_id", ref.SkillID,
			)
			continue
		}
		skills = append(skills, skill)
	}
	svc.Engine.EquipSkills(exec.Session.ID, skills)

	exec.Session.Send(fmt.Sprintf("c_info %s %s %d %d %d",
		rec.Name, rec.ID, rec.Class, rec.Level, rec.JobLevel))
	for _, skill := range skills {
		exec.Session.Send(fmt.Sprintf("ski %d %d", skill.ID, skill.CastID))
	}

	slog.Info("character connected",
		"character", rec.Name,
		"conn_id", exec.Session.ID.String(),
	)
	return nil
}

// QuitHandler handles `quit <seq>`. Teardown, including the final
// save, runs in the gateway's disconnect path so abrupt drops take
// the same route.
func QuitHandler(ctx context.Context, exec *command.Execution) error {
	if exec.Disconnect != nil {
		exec.Disconnect()
	}
	return nil
}
