// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirefall/mirefall/internal/core"
)

var tracer = otel.Tracer("mirefall/command")

// Dispatcher parses inbound lines and routes them through the verb
// binding table. The protocol is lenient: malformed lines, unknown
// verbs, and under-argued commands are dropped with a debug log and
// no client feedback.
type Dispatcher struct {
	registry *Registry
	services *Services
	guard    *FloodGuard // optional, can be nil
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithFloodGuard enables per-connection command rate limiting.
func WithFloodGuard(guard *FloodGuard) DispatcherOption {
	return func(d *Dispatcher) {
		d.guard = guard
	}
}

// NewDispatcher creates a dispatcher over a binding table and the
// service set handed to handlers.
func NewDispatcher(registry *Registry, services *Services, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Errorf("nil registry")
	}
	if services == nil {
		return nil, oops.Errorf("nil services")
	}
	d := &Dispatcher{
		registry: registry,
		services: services,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch decodes and executes one inbound line for a session.
// Failures never escape to the caller's loop: drops are silent and
// handler errors are reported to the client where the code warrants
// it. The returned error is for logging and tests.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, s *core.Session, disconnect func()) (err error) {
	parsed, err := Parse(input)
	if err != nil {
		slog.DebugContext(ctx, "dropping malformed command",
			"input", input,
			"error", err,
		)
		RecordExecution("", StatusDropped)
		return err
	}

	if d.guard != nil && !d.guard.Allow(s.ID) {
		RecordExecution(parsed.Verb, StatusRateLimited)
		return nil
	}

	entry, ok := d.registry.Get(parsed.Verb)
	if !ok {
		slog.DebugContext(ctx, "dropping unknown verb",
			"verb", parsed.Verb,
		)
		RecordExecution(parsed.Verb, StatusDropped)
		return ErrUnknownCommand(parsed.Verb)
	}
	if len(parsed.Args) < entry.MinArgs {
		slog.DebugContext(ctx, "dropping under-argued command",
			"verb", parsed.Verb,
			"got", len(parsed.Args),
			"want", entry.MinArgs,
		)
		RecordExecution(parsed.Verb, StatusDropped)
		return oops.Code(CodeMalformed).
			With("verb", parsed.Verb).
			Errorf("expected at least %d arguments, got %d", entry.MinArgs, len(parsed.Args))
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.verb", parsed.Verb),
			attribute.String("conn.id", s.ID.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	exec := &Execution{
		Session:    s,
		Seq:        parsed.Seq,
		Args:       parsed.Args,
		Verb:       parsed.Verb,
		Disconnect: disconnect,
		Services:   d.services,
	}

	start := time.Now()
	err = entry.Handler(ctx, exec)
	RecordDuration(parsed.Verb, time.Since(start))

	switch {
	case err == nil:
		RecordExecution(parsed.Verb, StatusSuccess)
	case Dropped(err):
		RecordExecution(parsed.Verb, StatusDropped)
		slog.DebugContext(ctx, "handler dropped command",
			"verb", parsed.Verb,
			"error", err,
		)
	default:
		RecordExecution(parsed.Verb, StatusError)
		slog.WarnContext(ctx, "command execution failed",
			"verb", parsed.Verb,
			"conn_id", s.ID.String(),
			"error", err,
		)
		if msg := PlayerMessage(err); msg != "" {
			s.Send(fmt.Sprintf("info %s", msg))
		}
	}
	return err
}
