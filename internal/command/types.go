// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package command provides the wireverb registry, parser, and dispatch
// system for inbound client packets.
package command

import (
	"context"

	"github.com/mirefall/mirefall/internal/battle"
	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/sched"
	"github.com/mirefall/mirefall/internal/storage"
	"github.com/mirefall/mirefall/internal/world"
)

// Handler is the function signature for verb handlers.
type Handler func(ctx context.Context, exec *Execution) error

// Entry is a registered verb in the binding table. The table is built
// once at startup; verbs are matched case-sensitively.
type Entry struct {
	Verb    string  // wire verb (e.g. "u_s")
	Handler Handler // bound handler
	MinArgs int     // arguments required after the sequence number
	Help    string  // short description (one line)
	Source  string  // "core" or the registering subsystem
}

// Execution carries one inbound command through its handler.
type Execution struct {
	Session *core.Session
	Seq     int      // session-scoped sequence number
	Args    []string // arguments after the sequence number
	Verb    string   // matched verb

	// Disconnect tears down the owning connection. Set by the
	// gateway; nil in contexts with no connection to drop.
	Disconnect func()

	Services *Services
}

// Services provides access to core services for verb handlers.
// Handlers must not retain references beyond the call.
type Services struct {
	Engine   *battle.Engine
	World    *world.World
	Sessions *core.SessionManager
	Bcast    *core.Broadcaster
	Catalog  *content.Catalog
	Store    storage.Store
	Sched    *sched.Scheduler
}
