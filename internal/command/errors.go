// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"github.com/samber/oops"
)

// Error codes for command dispatch failures.
const (
	CodeMalformed      = "MALFORMED_COMMAND"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeInvalidState   = "INVALID_STATE"
	CodeStaleCallback  = "STALE_CALLBACK"
	CodeStorageFailure = "STORAGE_FAILURE"
	CodeNoCharacter    = "NO_CHARACTER"
	CodeAuthFailed     = "AUTH_FAILED"
)

// ErrUnknownCommand creates an error for an unrecognized verb.
func ErrUnknownCommand(verb string) error {
	return oops.Code(CodeUnknownCommand).
		With("verb", verb).
		Errorf("unknown verb: %s", verb)
}

// ErrInvalidState creates an error for a command refused by the
// character's current state.
func ErrInvalidState(verb, reason string) error {
	return oops.Code(CodeInvalidState).
		With("verb", verb).
		With("reason", reason).
		Errorf("invalid state for %s: %s", verb, reason)
}

// StorageError wraps a collaborator failure with a player-facing
// message. Storage failures never terminate the session loop.
func StorageError(message string, cause error) error {
	builder := oops.Code(CodeStorageFailure).With("message", message)
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Errorf("%s", message)
}

// ErrNoCharacter creates an error when a verb requiring a bound
// character runs on an unauthenticated session.
func ErrNoCharacter() error {
	return oops.Code(CodeNoCharacter).
		Errorf("no character bound to session")
}

// ErrAuthFailed creates an error for a rejected login.
func ErrAuthFailed(name string) error {
	return oops.Code(CodeAuthFailed).
		With("name", name).
		Errorf("authentication failed for %s", name)
}

// Dropped reports whether an error is a lenient-protocol drop: the
// command is discarded with a debug log and no client feedback.
func Dropped(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case CodeMalformed, CodeUnknownCommand, CodeStaleCallback:
		return true
	default:
		return false
	}
}

// PlayerMessage extracts a player-facing message from an error, for
// the codes that warrant client feedback.
func PlayerMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong."
	}
	switch oopsErr.Code() {
	case CodeStorageFailure:
		if msg, ok := oopsErr.Context()["message"].(string); ok {
			return msg
		}
		return "Something went wrong. Try again."
	case CodeNoCharacter:
		return "No character bound to this session."
	case CodeAuthFailed:
		return "Wrong character name or password."
	default:
		return ""
	}
}
