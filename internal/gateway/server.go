// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package gateway provides the TCP protocol adapter: one connection
// handler per client, each with a single worker consuming inbound
// lines in order.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/mirefall/mirefall/internal/command"
)

// Server accepts client connections.
type Server struct {
	addr       string
	dispatcher *command.Dispatcher
	services   *command.Services

	mu       sync.RWMutex
	listener net.Listener
}

// NewServer creates a gateway listening on addr once Run is called.
func NewServer(addr string, dispatcher *command.Dispatcher, services *command.Services) *Server {
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		services:   services,
	}
}

// Addr returns the bound listen address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts accepting connections and blocks until the context is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("gateway started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		handler := NewConnectionHandler(conn, s.dispatcher, s.services)
		go handler.Handle(ctx)
	}
}
