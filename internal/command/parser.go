// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// ParsedCommand is one decoded inbound line. The wire shape is
// `<verb> <seq> <arg1> ... <argN>`, space-delimited.
type ParsedCommand struct {
	Verb string
	Seq  int
	Args []string
	Raw  string
}

// Parse splits a raw inbound line into verb, sequence number, and
// arguments. The protocol is lenient: a malformed line yields a
// MALFORMED_COMMAND error, which the dispatcher drops without reply.
func Parse(input string) (*ParsedCommand, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, oops.Code(CodeMalformed).Errorf("empty input")
	}
	if len(fields) < 2 {
		return nil, oops.Code(CodeMalformed).
			With("verb", fields[0]).
			Errorf("missing sequence number")
	}

	seq, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, oops.Code(CodeMalformed).
			With("verb", fields[0]).
			With("seq", fields[1]).
			Wrapf(err, "non-numeric sequence number")
	}

	return &ParsedCommand{
		Verb: fields[0],
		Seq:  seq,
		Args: fields[2:],
		Raw:  input,
	}, nil
}

// IntArg decodes argument i as a decimal integer. Out-of-range or
// non-numeric arguments yield a MALFORMED_COMMAND error.
func (e *Execution) IntArg(i int) (int64, error) {
	if i >= len(e.Args) {
		return 0, oops.Code(CodeMalformed).
			With("verb", e.Verb).
			With("index", i).
			Errorf("missing argument %d", i)
	}
	v, err := strconv.ParseInt(e.Args[i], 10, 64)
	if err != nil {
		return 0, oops.Code(CodeMalformed).
			With("verb", e.Verb).
			With("index", i).
			Wrapf(err, "non-numeric argument %q", e.Args[i])
	}
	return v, nil
}
