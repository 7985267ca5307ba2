// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Flood guard defaults. Game clients legitimately burst packets
// (movement spam while dragging), so the bucket is generous.
const (
	// DefaultBurstCapacity is how many commands a connection can issue
	// back to back before the guard engages.
	DefaultBurstCapacity = 30

	// DefaultSustainedRate is the token refill rate in commands per
	// second.
	DefaultSustainedRate = 10.0

	// DefaultStaleAfter is how long an idle connection's bucket is
	// kept before background cleanup discards it.
	DefaultStaleAfter = 10 * time.Minute

	// DefaultSweepInterval is how often the cleanup goroutine runs.
	DefaultSweepInterval = time.Minute
)

// FloodGuardConfig configures a FloodGuard. Zero values take the
// package defaults.
type FloodGuardConfig struct {
	BurstCapacity int
	SustainedRate float64
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// connBucket is the token bucket for one connection.
type connBucket struct {
	tokens    float64
	lastCheck time.Time
}

// FloodGuard drops inbound commands from connections that exceed a
// per-connection token bucket. It is safe for concurrent use and runs
// a background sweep for idle buckets; call Close to stop it.
type FloodGuard struct {
	mu      sync.Mutex
	buckets map[ulid.ULID]*connBucket

	burstCapacity int
	sustainedRate float64
	staleAfter    time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewFloodGuard creates a flood guard and starts its sweep goroutine.
func NewFloodGuard(cfg FloodGuardConfig) *FloodGuard {
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = DefaultBurstCapacity
	}
	if cfg.SustainedRate <= 0 {
		cfg.SustainedRate = DefaultSustainedRate
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	g := &FloodGuard{
		buckets:       make(map[ulid.ULID]*connBucket),
		burstCapacity: cfg.BurstCapacity,
		sustainedRate: cfg.SustainedRate,
		staleAfter:    cfg.StaleAfter,
		stopChan:      make(chan struct{}),
	}

	g.wg.Add(1)
	go g.sweepLoop(cfg.SweepInterval)
	return g
}

// Allow consumes one token for the connection and reports whether the
// command may proceed. A new connection starts with a full bucket;
// tokens refill at the sustained rate up to the burst capacity.
func (g *FloodGuard) Allow(connID ulid.ULID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	bucket, ok := g.buckets[connID]
	if !ok {
		bucket = &connBucket{
			tokens:    float64(g.burstCapacity),
			lastCheck: now,
		}
		g.buckets[connID] = bucket
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * g.sustainedRate
	if bucket.tokens > float64(g.burstCapacity) {
		bucket.tokens = float64(g.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true
	}
	return false
}

// Forget drops a connection's bucket. Called on disconnect.
func (g *FloodGuard) Forget(connID ulid.ULID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.buckets, connID)
}

// TrackedCount returns the number of tracked connections.
func (g *FloodGuard) TrackedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// Sweep removes buckets idle longer than maxAge.
func (g *FloodGuard) Sweep(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for id, bucket := range g.buckets {
		if bucket.lastCheck.Before(threshold) {
			delete(g.buckets, id)
		}
	}
}

func (g *FloodGuard) sweepLoop(interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.Sweep(g.staleAfter)
		}
	}
}

// Close stops the sweep goroutine. Blocks until it has exited.
func (g *FloodGuard) Close() {
	close(g.stopChan)
	g.wg.Wait()
}
