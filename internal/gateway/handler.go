// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mirefall/mirefall/internal/command"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/storage"
)

// saveTimeout bounds the final character save during teardown.
const saveTimeout = 5 * time.Second

// ConnectionHandler owns a single client connection. All inbound
// commands for the connection run on its worker, in arrival order;
// only scheduler callbacks touch its session from elsewhere.
type ConnectionHandler struct {
	conn       net.Conn
	reader     *bufio.Reader
	dispatcher *command.Dispatcher
	services   *command.Services
	session    *core.Session

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnectionHandler creates a handler and its session. The session
// writes outbound packets straight to the connection.
func NewConnectionHandler(conn net.Conn, dispatcher *command.Dispatcher, services *command.Services) *ConnectionHandler {
	return &ConnectionHandler{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		dispatcher: dispatcher,
		services:   services,
		session:    core.NewSession(conn),
		closed:     make(chan struct{}),
	}
}

// Handle processes the connection until it closes, then runs the
// teardown sequence.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	defer h.teardown()

	h.services.Sessions.Add(h.session)

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- line:
			case <-h.closed:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.closed:
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error",
					"conn_id", h.session.ID.String(),
					"error", err,
				)
			}
			return

		case line := <-lineCh:
			// Dispatch handles its own error reporting; the worker
			// never dies on a bad command.
			_ = h.dispatcher.Dispatch(ctx, line, h.session, h.disconnect) //nolint:errcheck
		}
	}
}

// disconnect requests teardown from inside a handler (the quit path).
func (h *ConnectionHandler) disconnect() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// teardown is the single disconnect path for both quits and dropped
// connections. Ordering matters: the session is invalidated before
// callbacks are cancelled, so a callback racing the cancellation
// observes a dead session and discards itself; the save runs last,
// against the final character state.
func (h *ConnectionHandler) teardown() {
	h.disconnect()

	if err := h.services.Sessions.Remove(h.session.ID); err != nil {
		slog.Debug("session already removed",
			"conn_id", h.session.ID.String(),
		)
	}
	cancelled := h.services.Sched.CancelAll(h.session.ID)
	if cancelled > 0 {
		slog.Debug("cancelled outstanding callbacks",
			"conn_id", h.session.ID.String(),
			"count", cancelled,
		)
	}
	h.services.Engine.DropSession(h.session.ID)

	// Snapshot only after invalidation: acquiring the session lock here
	// waits out any callback that was mid-mutation, and every later one
	// sees a dead session, so the save captures the final state.
	if char, ok := h.session.CharacterSnapshot(); ok {
		rec := storage.RecordFromCharacter(&char)
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := h.services.Store.SaveCharacter(ctx, rec); err != nil {
			slog.Error("failed to save character on disconnect",
				"character", rec.Name,
				"error", err,
			)
		}
	}

	if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Debug("error closing connection",
			"conn_id", h.session.ID.String(),
			"error", err,
		)
	}

	slog.Info("connection closed",
		"conn_id", h.session.ID.String(),
	)
}
