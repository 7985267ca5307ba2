// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package handlers

import (
	"github.com/mirefall/mirefall/internal/command"
)

// RegisterAll binds every core verb into the dispatch table. The
// table is immutable after startup.
func RegisterAll(reg *command.Registry) {
	// Battle verbs
	reg.Register(command.Entry{
		Verb:    "u_s",
		Handler: UseSkillHandler,
		MinArgs: 3,
		Help:    "Use a skill on a target",
		Source:  "core",
	})
	reg.Register(command.Entry{
		Verb:    "u_as",
		Handler: ZoneSkillHandler,
		MinArgs: 3,
		Help:    "Use an area skill at map coordinates",
		Source:  "core",
	})
	reg.Register(command.Entry{
		Verb:    "mtlist",
		Handler: MultiTargetHandler,
		MinArgs: 2,
		Help:    "Resolve a multi-target hit list",
		Source:  "core",
	})

	// Movement verbs
	reg.Register(command.Entry{
		Verb:    "walk",
		Handler: WalkHandler,
		MinArgs: 2,
		Help:    "Update the character's position",
		Source:  "core",
	})
	reg.Register(command.Entry{
		Verb:    "rest",
		Handler: RestHandler,
		MinArgs: 1,
		Help:    "Sit down or stand up",
		Source:  "core",
	})

	// Session verbs
	reg.Register(command.Entry{
		Verb:    "connect",
		Handler: ConnectHandler,
		MinArgs: 2,
		Help:    "Authenticate and bind a character",
		Source:  "core",
	})
	reg.Register(command.Entry{
		Verb:    "quit",
		Handler: QuitHandler,
		Help:    "Disconnect from the game",
		Source:  "core",
	})
}
