// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for command execution metrics.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusDropped     = "dropped"
	StatusRateLimited = "rate_limited"
)

// CommandExecutions is the counter for dispatched commands.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mirefall_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"verb", "status"},
)

// CommandDuration is the histogram for handler execution duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mirefall_command_duration_seconds",
		Help:    "Command handler duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"verb"},
)

// RegisterMetrics registers command package metrics with the given
// Prometheus registry. Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions)
	reg.MustRegister(CommandDuration)
}

// RecordExecution increments the execution counter for a verb.
func RecordExecution(verb, status string) {
	CommandExecutions.WithLabelValues(verb, status).Inc()
}

// RecordDuration records how long a handler took.
func RecordDuration(verb string, duration time.Duration) {
	CommandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}
