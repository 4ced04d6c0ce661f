// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for dispatch metrics.
const (
	StatusSuccess      = "success"
	StatusError        = "error"
	StatusHandled      = "handled"
	StatusUnclaimed    = "unclaimed"
	StatusUnregistered = "unregistered"
)

// HookInvocations is the counter for plugin hook invocations.
// Use RegisterMetrics to register this with a Prometheus registry.
var HookInvocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metroscript_hook_invocations_total",
		Help: "Total number of plugin hook invocations",
	},
	[]string{"hook", "status"},
)

// HookDuration is the histogram for plugin hook execution duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var HookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "metroscript_hook_duration_seconds",
		Help:    "Plugin hook execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"hook"},
)

// CheatRoutes is the counter for cheat routing outcomes.
// Use RegisterMetrics to register this with a Prometheus registry.
var CheatRoutes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metroscript_cheat_routes_total",
		Help: "Total number of cheat routing attempts",
	},
	[]string{"status"},
)

// RegisterMetrics registers dispatch package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HookInvocations)
	reg.MustRegister(HookDuration)
	reg.MustRegister(CheatRoutes)
}

// RecordHookInvocation increments the hook invocation counter.
// Parameters:
//   - hook: the plugin hook that was invoked
//   - status: invocation result (use Status* constants)
func RecordHookInvocation(hook, status string) {
	HookInvocations.WithLabelValues(hook, status).Inc()
}

// RecordHookDuration records the duration of a hook invocation.
// Parameters:
//   - hook: the plugin hook that was invoked
//   - duration: how long the hook took to execute
func RecordHookDuration(hook string, duration time.Duration) {
	HookDuration.WithLabelValues(hook).Observe(duration.Seconds())
}

// RecordCheatRoute increments the cheat routing counter.
// Parameters:
//   - status: routing result (use Status* constants)
func RecordCheatRoute(status string) {
	CheatRoutes.WithLabelValues(status).Inc()
}
