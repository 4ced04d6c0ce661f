// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package plugin

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for plugin load metrics.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// PluginLoads is the counter for plugin load attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metroscript_plugin_loads_total",
		Help: "Total number of plugin load attempts",
	},
	[]string{"status"},
)

// PluginUnloads is the counter for plugin unloads.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginUnloads = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "metroscript_plugin_unloads_total",
		Help: "Total number of plugin unloads",
	},
)

// PluginsLoaded is the gauge of currently loaded plugins.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginsLoaded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "metroscript_plugins_loaded",
		Help: "Number of currently loaded plugins",
	},
)

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PluginLoads)
	reg.MustRegister(PluginUnloads)
	reg.MustRegister(PluginsLoaded)
}

// RecordLoad increments the plugin load counter.
// Parameters:
//   - status: load result (use Status* constants)
func RecordLoad(status string) {
	PluginLoads.WithLabelValues(status).Inc()
}

// RecordUnload increments the plugin unload counter.
func RecordUnload() {
	PluginUnloads.Inc()
}

// SetPluginsLoaded updates the loaded-plugin gauge.
func SetPluginsLoaded(n int) {
	PluginsLoaded.Set(float64(n))
}
