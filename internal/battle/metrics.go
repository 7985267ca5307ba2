// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cast outcome labels.
const (
	OutcomeBegun    = "begun"
	OutcomeRejected = "rejected"
	OutcomeResolved = "resolved"
	OutcomeStale    = "stale"
)

// CastsTotal counts cast attempts by skill and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var CastsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mirefall_casts_total",
		Help: "Total number of skill cast attempts by outcome",
	},
	[]string{"skill", "outcome"},
)

// ResolveDuration observes how long one resolution step takes.
var ResolveDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mirefall_resolve_duration_seconds",
		Help:    "Skill resolution step duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"skill"},
)

// KillsTotal counts monster deaths.
var KillsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "mirefall_kills_total",
		Help: "Total number of monsters killed",
	},
)

// RegisterMetrics registers battle metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CastsTotal, ResolveDuration, KillsTotal)
}
