// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package core

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sessions and characters share one id space so a packet field always
// identifies an actor without knowing its kind. The monotonic reader is
// not safe for concurrent use, hence the lock.
var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID mints an actor id. Ids minted within the same millisecond
// still sort in mint order.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseULID decodes an actor id received off the wire or read from
// storage.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid ULID %q: %w", s, err)
	}
	return id, nil
}
